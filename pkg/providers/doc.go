// Package providers implements the Upstream Client: a single unary-or-
// streaming chat-completion call against one upstream base URL, API key,
// and header set, plus the OpenAI Chat Completions wire types it speaks
// and the error taxonomy it classifies failures into.
package providers
