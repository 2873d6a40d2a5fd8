package domain

import "io"

type Message struct {
	Chat    string
	Sender  string
	IsGroup bool
	Text    string
	Quoted  *Quoted
}

// Quoted is the message this message replies to. Payload is the
// transport-specific quoted content and is only interpreted by the
// transport adapter that produced it.
type Quoted struct {
	Sender   string
	HasMedia bool
	Payload  any
}

type Attachment struct {
	Data     []byte
	MimeType string
}

type OutgoingFile struct {
	Path     string
	Filename string
	Caption  string
}

// FetchResult carries an open response body; the consumer owns closing it.
type FetchResult struct {
	Body     io.ReadCloser
	Filename string
	Size     int64
}

type Availability string

const (
	AvailabilityInitializing Availability = "initializing"
	AvailabilityReady        Availability = "ready"
	AvailabilityOffline      Availability = "offline"
)
