package models

import (
	"strconv"
	"strings"
)

// Sentinel is stored in place of any text field whose analyzer produced nothing.
const Sentinel = "."

// Attribute keys written to blob metadata and document records.
const (
	AttrOCRText               = "ocrTxt"
	AttrHasHighVoltageSign    = "hasHighVoltageSign"
	AttrHasLiveElectricalSign = "hasLiveElectricalSign"
	AttrHasLiveWiresSign      = "hasLiveWiresSign"
	AttrTags                  = "tags"
	AttrDominantColours       = "dominantColours"
	AttrAccentColour          = "accentColour"
	AttrIsOnFire              = "isOnFire"
	AttrContainsTransformer   = "containsTransformer"
	AttrContainsPole          = "containsPole"
	AttrEXIFCaptureDate       = "exifCaptureDate"
	AttrEXIFCaptureTime       = "exifCaptureTime"
	AttrEXIFLatitude          = "exifLatGPS"
	AttrEXIFLongitude         = "exifLongGPS"
)

// OCRFindings is the output of the text recognition analyzer.
type OCRFindings struct {
	Text                  string
	HasHighVoltageSign    bool
	HasLiveElectricalSign bool
	HasLiveWiresSign      bool
}

// SceneFindings is the output of the description and colour analyzer.
type SceneFindings struct {
	Tags            string
	DominantColours string
	AccentColour    string
	IsOnFire        bool
}

// ClassifierFindings is the output of the custom object classifier.
type ClassifierFindings struct {
	ContainsTransformer bool
	ContainsPole        bool
}

// EXIFData holds the capture metadata embedded in the image. Empty fields mean the tag was
// missing or undecodable.
type EXIFData struct {
	CaptureDate string // MMDDYYYY
	CaptureTime string // HHMMSS
	Latitude    string
	Longitude   string
}

// ImageMetadata is the merged enrichment record. Every text field is non-empty: absence is
// recorded as Sentinel and absence of a flag as false.
type ImageMetadata struct {
	OCRText               string `json:"ocrTxt"`
	HasHighVoltageSign    bool   `json:"hasHighVoltageSign"`
	HasLiveElectricalSign bool   `json:"hasLiveElectricalSign"`
	HasLiveWiresSign      bool   `json:"hasLiveWiresSign"`
	Tags                  string `json:"tags"`
	DominantColours       string `json:"dominantColours"`
	AccentColour          string `json:"accentColour"`
	IsOnFire              bool   `json:"isOnFire"`
	ContainsTransformer   bool   `json:"containsTransformer"`
	ContainsPole          bool   `json:"containsPole"`
	EXIFCaptureDate       string `json:"exifCaptureDate"`
	EXIFCaptureTime       string `json:"exifCaptureTime"`
	EXIFLatitude          string `json:"exifLatGPS"`
	EXIFLongitude         string `json:"exifLongGPS"`
}

// NewImageMetadata merges the analyzer outputs. A nil argument means that analyzer was
// unavailable and its fields take their sentinel values.
func NewImageMetadata(ocr *OCRFindings, scene *SceneFindings, cls *ClassifierFindings, exif *EXIFData) ImageMetadata {
	md := ImageMetadata{
		OCRText:         Sentinel,
		Tags:            Sentinel,
		DominantColours: Sentinel,
		AccentColour:    Sentinel,
		EXIFCaptureDate: Sentinel,
		EXIFCaptureTime: Sentinel,
		EXIFLatitude:    Sentinel,
		EXIFLongitude:   Sentinel,
	}

	if ocr != nil && strings.TrimSpace(ocr.Text) != "" {
		md.OCRText = ocr.Text
		md.HasHighVoltageSign = ocr.HasHighVoltageSign
		md.HasLiveElectricalSign = ocr.HasLiveElectricalSign
		md.HasLiveWiresSign = ocr.HasLiveWiresSign
	}

	if scene != nil {
		md.Tags = orSentinel(scene.Tags)
		md.DominantColours = orSentinel(scene.DominantColours)
		md.AccentColour = orSentinel(scene.AccentColour)
		md.IsOnFire = scene.IsOnFire
	}

	if cls != nil {
		md.ContainsTransformer = cls.ContainsTransformer
		md.ContainsPole = cls.ContainsPole
	}

	if exif != nil {
		md.EXIFCaptureDate = orSentinel(exif.CaptureDate)
		md.EXIFCaptureTime = orSentinel(exif.CaptureTime)
		// coordinates are only meaningful as a pair
		if exif.Latitude != "" && exif.Longitude != "" {
			md.EXIFLatitude = exif.Latitude
			md.EXIFLongitude = exif.Longitude
		}
	}

	return md
}

// Attributes flattens the record into string key/value pairs for blob metadata.
func (m ImageMetadata) Attributes() map[string]string {
	return map[string]string{
		AttrOCRText:               m.OCRText,
		AttrHasHighVoltageSign:    strconv.FormatBool(m.HasHighVoltageSign),
		AttrHasLiveElectricalSign: strconv.FormatBool(m.HasLiveElectricalSign),
		AttrHasLiveWiresSign:      strconv.FormatBool(m.HasLiveWiresSign),
		AttrTags:                  m.Tags,
		AttrDominantColours:       m.DominantColours,
		AttrAccentColour:          m.AccentColour,
		AttrIsOnFire:              strconv.FormatBool(m.IsOnFire),
		AttrContainsTransformer:   strconv.FormatBool(m.ContainsTransformer),
		AttrContainsPole:          strconv.FormatBool(m.ContainsPole),
		AttrEXIFCaptureDate:       m.EXIFCaptureDate,
		AttrEXIFCaptureTime:       m.EXIFCaptureTime,
		AttrEXIFLatitude:          m.EXIFLatitude,
		AttrEXIFLongitude:         m.EXIFLongitude,
	}
}

func orSentinel(s string) string {
	if strings.TrimSpace(s) == "" {
		return Sentinel
	}
	return s
}
