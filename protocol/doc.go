// Package protocol implements the runtime side of the server: a TCP
// listener on the first free port of a fixed range, exactly one accepted
// connection, and the framed message format the runtime speaks.
//
// Each inbound message is a header made of the shared secret followed by a
// nine-digit decimal length, then the body terminated by a 0x11 byte that
// is not part of the length:
//
//	<secret><000000012>+Gsome body\x11
//
// Messages sent to the runtime are raw text.
package protocol
