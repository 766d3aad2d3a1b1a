package analyzer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	apperrors "go-image-enricher/internal/errors"
	"go-image-enricher/pkg/models"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// ExtractEXIF reads the digitised capture time and GPS position from the image's EXIF block.
// Missing tags are left empty; a missing or corrupt EXIF container makes the result unavailable.
func ExtractEXIF(r io.Reader) (res Result[models.EXIFData]) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = unavailable[models.EXIFData](apperrors.NewParseError(fmt.Sprintf("malformed EXIF data: %v", p), nil), start)
		}
	}()

	x, err := exif.Decode(r)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return unavailable[models.EXIFData](apperrors.NewParseError("failed to decode EXIF", err), start)
	}

	var data models.EXIFData
	if captured, ok := captureTime(x); ok {
		data.CaptureDate = captured.Format("01022006")
		data.CaptureTime = captured.Format("150405")
	}
	if lat, long, ok := gpsPosition(x); ok {
		data.Latitude = strconv.FormatFloat(lat, 'f', -1, 64)
		data.Longitude = strconv.FormatFloat(long, 'f', -1, 64)
	}
	return available(data, start)
}

func captureTime(x *exif.Exif) (time.Time, bool) {
	tag, err := x.Get(exif.DateTimeDigitized)
	if err != nil {
		return time.Time{}, false
	}
	s, err := tag.StringVal()
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(exifTimeLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// gpsPosition returns signed decimal degrees. All four GPS tags must be present and decodable.
func gpsPosition(x *exif.Exif) (lat, long float64, ok bool) {
	latTag, err := x.Get(exif.GPSLatitude)
	if err != nil {
		return 0, 0, false
	}
	longTag, err := x.Get(exif.GPSLongitude)
	if err != nil {
		return 0, 0, false
	}
	latRef, err := refValue(x, exif.GPSLatitudeRef)
	if err != nil {
		return 0, 0, false
	}
	longRef, err := refValue(x, exif.GPSLongitudeRef)
	if err != nil {
		return 0, 0, false
	}

	if lat, err = degrees(latTag); err != nil {
		return 0, 0, false
	}
	if long, err = degrees(longTag); err != nil {
		return 0, 0, false
	}
	return DecimalDegrees(lat, latRef), DecimalDegrees(long, longRef), true
}

func refValue(x *exif.Exif, name exif.FieldName) (string, error) {
	tag, err := x.Get(name)
	if err != nil {
		return "", err
	}
	return tag.StringVal()
}

// degrees converts a degrees/minutes/seconds rational triple to decimal degrees.
func degrees(tag *tiff.Tag) (float64, error) {
	if tag.Count < 3 {
		return 0, fmt.Errorf("expected 3 rational values, got %d", tag.Count)
	}
	var parts [3]float64
	for i := range parts {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return 0, err
		}
		if den == 0 {
			return 0, fmt.Errorf("zero denominator in component %d", i)
		}
		parts[i] = float64(num) / float64(den)
	}
	return parts[0] + parts[1]/60 + parts[2]/3600, nil
}

// DecimalDegrees applies the hemisphere reference: south and west are negative.
func DecimalDegrees(value float64, ref string) float64 {
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		return -value
	}
	return value
}
