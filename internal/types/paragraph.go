// Package types provides type definitions for structured data used throughout the style-tagger system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// Context zones a paragraph can belong to. Box zones are open-ended and
// carry a "BOX_" prefix (e.g. BOX_CASE, BOX_KEYPOINTS).
const (
	ZoneBody        = "BODY"
	ZoneTable       = "TABLE"
	ZoneFrontMatter = "FRONT_MATTER"
	ZoneBackMatter  = "BACK_MATTER"
	ZoneMetadata    = "METADATA"

	BoxZonePrefix = "BOX_"
)

// IsBoxZone reports whether a zone name denotes boxed content.
func IsBoxZone(zone string) bool {
	return strings.HasPrefix(zone, BoxZonePrefix)
}

// Paragraph is a single input unit for classification. ID is the
// paragraph's ordinal position within its document and doubles as the
// ordering key for result merging.
type Paragraph struct {
	ID   int           `json:"id"`
	Text string        `json:"text"`
	Zone string        `json:"zone,omitempty"`
	Meta ParagraphMeta `json:"metadata,omitempty"`
}

// ParagraphMeta carries structural cues extracted upstream that are not
// visible in the paragraph text itself.
type ParagraphMeta struct {
	// ListKind is "bullet", "numbered" or "unnumbered" when the paragraph
	// is a list item whose marker was stripped from the text.
	ListKind string `json:"list_kind,omitempty"`
	// ListPosition is "first", "mid" or "last" within the containing list.
	ListPosition string `json:"list_position,omitempty"`
	IsTable      bool   `json:"is_table,omitempty"`
	IsHeaderRow  bool   `json:"is_header_row,omitempty"`
	// BoxMarker names the box variant for boxed content (e.g. "CASE").
	BoxMarker string `json:"box_marker,omitempty"`
}

// EffectiveZone returns the paragraph's zone, defaulting to BODY.
func (p Paragraph) EffectiveZone() string {
	if p.Zone == "" {
		return ZoneBody
	}
	return p.Zone
}
