// Package ingestion drives a bookmark through the processing pipeline.
//
// The Pipeline type runs the four stages in order:
//   - fetch: retrieve the page and convert it to markdown
//   - summarize: generate a short summary of the content
//   - chunk: split the markdown into token-bounded chunks
//   - embed: attach an embedding to every chunk
//
// Each stage transition is persisted with compare-and-swap semantics, so a
// bookmark can resume from wherever a previous run stopped and concurrent
// deliveries of the same bookmark cannot double-run a stage. A stage failure
// marks the bookmark failed with the cause; it is not retried automatically.
package ingestion
