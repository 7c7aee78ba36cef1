// Package summarizer wraps the external summarization service.
//
// Each call sends a fixed instruction preamble plus one artifact's full
// content to a chat-completions endpoint and persists the response as a
// sibling "{artifact}_summary" file. Transient failures are retried with
// exponential backoff (honoring server Retry-After hints); exhausted
// retries fail only that unit of work. Every success is recorded in the
// resume ledger before the fixed inter-request cooldown.
package summarizer
