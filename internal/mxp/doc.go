// Package mxp interprets the MUD eXtension Protocol markup embedded in the
// output stream.
//
// The Interpreter implements stream.TagHandler. It keeps a registry of
// custom elements declared by the peer with <!ELEMENT> and maintains entity
// variables declared with <!ENTITY>. Custom elements are expanded into their
// template and fed back into the decoder; built-in tags (<send>, <a>,
// <b>/<i>/<u>/<s>, <img>, <version>, <dest>) open and close inline elements
// on the render target.
//
// Inline tags never outlive a line: OnNewline pops everything still open.
package mxp
