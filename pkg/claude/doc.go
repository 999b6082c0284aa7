// Package claude defines the Claude Messages API wire types: the inbound
// request shape, the outbound unary reply shape, the server-sent event
// sequence emitted for streaming replies, and the error envelope returned
// for any failure. These are the Claude-side counterpart to the OpenAI
// wire types in pkg/providers.
package claude
