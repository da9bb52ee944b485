package config

const (
	// TopicPageMetadata carries one PageMessage per extracted PDF page.
	TopicPageMetadata = "pdf_metadata"

	// TopicDrawingMetadata carries one DrawingMessage per engineering drawing.
	TopicDrawingMetadata = "dwg_metadata"
)

// Topics lists every topic the service declares at startup.
var Topics = []string{TopicPageMetadata, TopicDrawingMetadata}
