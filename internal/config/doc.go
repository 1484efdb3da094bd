// Package config loads QuotePulse configuration.
//
// Values come from three layers, later layers winning:
//
//	1. Default()
//	2. a YAML file named by QUOTEPULSE_CONFIG, or ./config.yaml, or ./configs/config.yaml
//	3. QUOTEPULSE_* environment variables
//
// Environment keys follow the struct layout, for example:
//
//	QUOTEPULSE_SERVER_PORT=9090
//	QUOTEPULSE_GDELT_PROXY_URL=https://proxy.example.com
//	QUOTEPULSE_GDELT_MIN_INTERVAL=6s
//	QUOTEPULSE_TWELVEDATA_API_KEY=...
//	QUOTEPULSE_ANALYSIS_DATE_RESOLVER=session
//
// TWELVE_API_KEY is accepted as a fallback for the Twelve Data key.
package config
