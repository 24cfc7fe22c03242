package dg

import (
	"bytes"
	"encoding/asn1"
	"encoding/base64"

	"github.com/go-phorce/pkd/xlog"
	"github.com/juju/errors"
)

// Face image formats detected by magic bytes
const (
	FormatJPEG     = "JPEG"
	FormatJPEG2000 = "JPEG2000"
	FormatUnknown  = "UNKNOWN"
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	jp2Magic  = []byte{0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50}
	facMagic  = []byte{'F', 'A', 'C', 0x00}
)

// facHeaderLen is the fixed ISO/IEC 19794-5 container header size:
// magic, version, total length, face count, reserved
const facHeaderLen = 20

// minImageSize filters metadata-only FaceInfo payloads
const minImageSize = 100

// FaceImage is one extracted face image
type FaceImage struct {
	Format string `json:"format"`
	Size   int    `json:"size"`
	Bytes  []byte `json:"-"`
	Base64 string `json:"base64"`
	// DataURL is the browser-renderable data: URL form
	DataURL string `json:"data_url"`
}

// FaceData is the decoded DG2 content
type FaceData struct {
	FaceCount  int         `json:"face_count"`
	FaceImages []FaceImage `json:"face_images"`
}

// ParseDG2 decodes a DG2 blob, accepting the four structural variants
// observed in production passports: the standard nested FaceImageBlock,
// the simplified block, FaceInfo as a bare OCTET STRING, and any of
// these with extra tagging at each level.
func ParseDG2(der []byte) (*FaceData, error) {
	top, err := unwrapToSequence(der)
	if err != nil {
		return nil, errors.Annotate(err, "unable to unwrap DG2")
	}
	elems, err := sequenceElements(top)
	if err != nil {
		return nil, errors.Annotate(err, "malformed DG2 structure")
	}
	if len(elems) == 0 {
		return nil, errors.New("empty DG2 structure")
	}

	// the FaceInfos set is conventionally the last element
	faceInfos, err := unwrapToSequence(elems[len(elems)-1].FullBytes)
	if err != nil {
		return nil, errors.Annotate(err, "unable to locate face records")
	}
	infos, err := sequenceElements(faceInfos)
	if err != nil {
		return nil, errors.Annotate(err, "malformed face record set")
	}

	data := &FaceData{}
	for i, info := range infos {
		payload, err := facePayload(info)
		if err != nil {
			logger.KV(xlog.WARNING, "api", "ParseDG2", "record", i, "err", err.Error())
			continue
		}
		img := extractImage(payload)
		if img.Size <= minImageSize {
			continue
		}
		data.FaceImages = append(data.FaceImages, img)
	}
	data.FaceCount = len(data.FaceImages)
	return data, nil
}

// facePayload resolves one FaceInfo element to its image payload,
// branching on the observed variant
func facePayload(info asn1.RawValue) ([]byte, error) {
	rv, err := unwrapTags(info)
	if err != nil {
		return nil, errors.Trace(err)
	}
	// bare OCTET STRING
	if isOctets(rv) {
		return rv.Bytes, nil
	}
	if !isSequence(rv) {
		return nil, errors.Errorf("unexpected face record element: class %d tag %d", rv.Class, rv.Tag)
	}

	inner, err := sequenceElements(rv)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(inner) == 0 {
		return nil, errors.New("empty face record")
	}
	first, err := unwrapTags(inner[0])
	if err != nil {
		return nil, errors.Trace(err)
	}
	// simplified block: the payload sits directly in the record
	if isOctets(first) {
		return first.Bytes, nil
	}
	if !isSequence(first) {
		return nil, errors.Errorf("unexpected face block element: class %d tag %d", first.Class, first.Tag)
	}

	// standard block: the payload is the last OCTET STRING of the
	// innermost sequence
	block, err := sequenceElements(first)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var payload []byte
	for _, el := range block {
		rv, err := unwrapTags(el)
		if err != nil {
			continue
		}
		if isOctets(rv) {
			payload = rv.Bytes
		}
	}
	if payload == nil {
		return nil, errors.New("face block carries no image payload")
	}
	return payload, nil
}

// extractImage strips the 19794-5 container header when present and
// detects the image format by magic bytes
func extractImage(payload []byte) FaceImage {
	img := payload
	if len(payload) > facHeaderLen && bytes.HasPrefix(payload, facMagic) {
		if off := findImageStart(payload); off > 0 {
			img = payload[off:]
		} else {
			img = payload[facHeaderLen:]
		}
	}
	f := FaceImage{
		Format: detectFormat(img),
		Size:   len(img),
		Bytes:  img,
		Base64: base64.StdEncoding.EncodeToString(img),
	}
	f.DataURL = "data:" + mimeType(f.Format) + ";base64," + f.Base64
	return f
}

// findImageStart scans past the container header for a known magic
func findImageStart(payload []byte) int {
	tail := payload[facHeaderLen:]
	jpeg := bytes.Index(tail, jpegMagic)
	jp2 := bytes.Index(tail, jp2Magic)
	switch {
	case jpeg >= 0 && (jp2 < 0 || jpeg < jp2):
		return facHeaderLen + jpeg
	case jp2 >= 0:
		return facHeaderLen + jp2
	}
	return -1
}

func detectFormat(img []byte) string {
	switch {
	case bytes.HasPrefix(img, jpegMagic):
		return FormatJPEG
	case len(img) >= len(jp2Magic)+4 && bytes.Equal(img[:len(jp2Magic)], jp2Magic):
		return FormatJPEG2000
	}
	return FormatUnknown
}

func mimeType(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatJPEG2000:
		return "image/jp2"
	}
	return "application/octet-stream"
}

// unwrapToSequence peels tagging layers until a universal SEQUENCE
func unwrapToSequence(der []byte) (asn1.RawValue, error) {
	data := der
	for depth := 0; depth < 16; depth++ {
		var rv asn1.RawValue
		if _, err := asn1.Unmarshal(data, &rv); err != nil {
			return asn1.RawValue{}, errors.Annotate(err, "malformed encoding")
		}
		if isSequence(rv) {
			return rv, nil
		}
		if !rv.IsCompound {
			return asn1.RawValue{}, errors.Errorf("expected constructed element, got class %d tag %d", rv.Class, rv.Tag)
		}
		data = rv.Bytes
	}
	return asn1.RawValue{}, errors.Errorf("tag nesting exceeds %d levels", 16)
}

// unwrapTags peels tagging layers from one element without requiring a
// particular terminal type
func unwrapTags(rv asn1.RawValue) (asn1.RawValue, error) {
	for depth := 0; depth < 16; depth++ {
		if rv.Class == asn1.ClassUniversal {
			return rv, nil
		}
		if !rv.IsCompound {
			// a primitive tagged value carries the payload directly
			return asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagOctetString, Bytes: rv.Bytes}, nil
		}
		var inner asn1.RawValue
		if _, err := asn1.Unmarshal(rv.Bytes, &inner); err != nil {
			return asn1.RawValue{}, errors.Annotate(err, "malformed tagged element")
		}
		rv = inner
	}
	return asn1.RawValue{}, errors.Errorf("tag nesting exceeds %d levels", 16)
}

// sequenceElements splits a constructed value into its children
func sequenceElements(seq asn1.RawValue) ([]asn1.RawValue, error) {
	var elems []asn1.RawValue
	data := seq.Bytes
	for len(data) > 0 {
		var rv asn1.RawValue
		rest, err := asn1.Unmarshal(data, &rv)
		if err != nil {
			return nil, errors.Annotate(err, "malformed element")
		}
		elems = append(elems, rv)
		data = rest
	}
	return elems, nil
}

func isSequence(rv asn1.RawValue) bool {
	return rv.Class == asn1.ClassUniversal && rv.Tag == asn1.TagSequence
}

func isOctets(rv asn1.RawValue) bool {
	return rv.Class == asn1.ClassUniversal && rv.Tag == asn1.TagOctetString
}
