// Package translate implements the Request Translator and Response
// Translator (§4.4, §4.5): structural rewriting between the Claude
// Messages schema and the OpenAI Chat Completions schema, including the
// streaming event state machine.
package translate
