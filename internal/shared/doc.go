// Package shared holds code used across QuotePulse packages that belongs to
// no single layer.
//
// The testutil subpackage provides:
//
//   - Stooq daily CSV and GDELT artlist fixtures (DailySeries, DailyCSV,
//     GDELTBody, TradingDays)
//   - BufferedSlogHandler and NewTestLogger for asserting on log output
//
// Example:
//
//	func TestAnalyze(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    feed := testutil.DailyCSV(testutil.DailySeries("2024-01-01", 40, 470)...)
//	    ...
//	    testutil.AssertNoErrors(t, logs)
//	}
//
// Nothing here may import the services or transport layers.
package shared
