// Package batch looks up serial numbers against the EoX API in fixed-size batches.
//
// The EoX API accepts at most 20 serial numbers per request. This package
// turns an arbitrary list of serials into consecutive batches, issues the
// batches one after another, follows result pagination within a batch, and
// records an explicit outcome for every distinct serial.
//
// Example usage:
//
//	fetcher := batch.NewBatchFetcher(eoxClient, batch.DefaultConfig())
//	results := fetcher.Fetch(ctx, token, serials)
//	record, ok := results.Milestones("FOC1234X1YZ")
//
// The batch fetcher:
//   - Drops duplicate serials, keeping first-seen order
//   - Marks malformed serials Invalid without sending them
//   - Sends ceil(N/size) requests for N valid serials
//   - Fetches the remaining pages when a batch result spans several pages
//   - Keeps going when a batch fails: its serials are marked Failed and the
//     error is kept in Results.Errors
package batch
