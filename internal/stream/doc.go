// Package stream decodes the byte stream received from a MUD server into
// calls on a render.Target.
//
// A Decoder is push-driven: each Feed call consumes one network chunk and
// resumes from wherever the previous call stopped. Escape sequences, tags
// and multi-byte characters cut by a chunk boundary are held back and
// completed by the next chunk, so the output is the same however the
// stream is split.
//
// Markup tags are not interpreted here. They are handed to a TagHandler,
// which may re-enter the decoder through Inject with the text a tag
// expands to.
package stream
