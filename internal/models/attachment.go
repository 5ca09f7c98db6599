package models

// Attachment describes a resolved image attachment included with a
// dispatch. Ref is the opaque reference handed to the session (a file
// path in this implementation); mimetype and dimensions are filled in by
// the attachment resolver.
type Attachment struct {
	Ref      string `json:"ref"`
	Mimetype string `json:"mimetype"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}
