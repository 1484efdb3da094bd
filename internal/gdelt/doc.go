// Package gdelt is a small client for the GDELT DOC 2.0 article list API.
//
// Requests can be routed through a caching proxy that takes the upstream URL
// in its "url" query parameter. Responses are decoded leniently: anything that
// is valid JSON but lacks an "articles" array is treated as zero results.
package gdelt
