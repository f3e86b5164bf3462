// Package codec converts model values to and from the raw payloads stored in
// the value log.
//
// Every codec owns one or more value kinds (used on write) and one or more type
// tags (used on read). Codec arguments travel next to the payload in index
// metadata as a small JSON value, so payloads themselves carry no header.
//
// Tags and argument layouts are a persistence boundary: changing them makes
// existing logs unreadable.
package codec
