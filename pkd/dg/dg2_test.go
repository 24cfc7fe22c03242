package dg

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	seqTag   = []byte{0x30}
	octTag   = []byte{0x04}
	ctx0Tag  = []byte{0xA0}
	app21Tag = []byte{0x75}
)

// facContainer prepends a 19794-5 header to the image bytes
func facContainer(image []byte) []byte {
	header := make([]byte, 0, facHeaderLen)
	header = append(header, 'F', 'A', 'C', 0x00)
	header = append(header, '0', '1', '0', 0x00)
	total := uint32(facHeaderLen + len(image))
	header = append(header, byte(total>>24), byte(total>>16), byte(total>>8), byte(total))
	header = append(header, 0x00, 0x01)
	header = append(header, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
	return append(header, image...)
}

func jpegBytes(size int) []byte {
	img := make([]byte, size)
	copy(img, jpegMagic)
	for i := len(jpegMagic); i < size; i++ {
		img[i] = byte(i)
	}
	return img
}

// dg2Blob wraps a FaceInfos body in the standard DG2 envelope
func dg2Blob(faceInfos []byte) []byte {
	top := tlv(seqTag, append(tlv(octTag, []byte{0x01}), tlv(seqTag, faceInfos)...))
	return tlv(app21Tag, top)
}

func Test_ParseDG2VariantA(t *testing.T) {
	payload := facContainer(jpegBytes(2048))
	block := tlv(seqTag, append(tlv(octTag, []byte{0x00, 0x01}), tlv(octTag, payload)...))
	faceInfo := tlv(seqTag, block)

	fd, err := ParseDG2(dg2Blob(faceInfo))
	require.NoError(t, err)
	require.Equal(t, 1, fd.FaceCount)
	assert.Equal(t, FormatJPEG, fd.FaceImages[0].Format)
	assert.Equal(t, 2048, fd.FaceImages[0].Size)
	assert.True(t, bytes.HasPrefix(fd.FaceImages[0].Bytes, jpegMagic))
}

func Test_ParseDG2VariantB(t *testing.T) {
	payload := facContainer(jpegBytes(2048))
	faceInfo := tlv(seqTag, tlv(octTag, payload))

	fd, err := ParseDG2(dg2Blob(faceInfo))
	require.NoError(t, err)
	require.Equal(t, 1, fd.FaceCount)
	assert.Equal(t, FormatJPEG, fd.FaceImages[0].Format)
}

// FaceInfo encoded directly as an OCTET STRING, 19794-5 header plus a
// 12 KB JPEG
func Test_ParseDG2VariantC(t *testing.T) {
	payload := facContainer(jpegBytes(12288))
	faceInfo := tlv(octTag, payload)

	fd, err := ParseDG2(dg2Blob(faceInfo))
	require.NoError(t, err)
	require.Equal(t, 1, fd.FaceCount)
	img := fd.FaceImages[0]
	assert.Equal(t, FormatJPEG, img.Format)
	assert.Equal(t, 12288, img.Size)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, img.Bytes[:3])
	assert.True(t, len(img.Base64) > 0)
	assert.Contains(t, img.DataURL, "data:image/jpeg;base64,")
}

// extra tagging wrappers at every nesting level
func Test_ParseDG2VariantD(t *testing.T) {
	payload := facContainer(jpegBytes(2048))
	block := tlv(seqTag, tlv(ctx0Tag, tlv(octTag, payload)))
	faceInfo := tlv(ctx0Tag, tlv(seqTag, tlv(ctx0Tag, block)))

	fd, err := ParseDG2(dg2Blob(faceInfo))
	require.NoError(t, err)
	require.Equal(t, 1, fd.FaceCount)
	assert.Equal(t, FormatJPEG, fd.FaceImages[0].Format)
}

func Test_ParseDG2SizeFilter(t *testing.T) {
	// 100 bytes filtered, 101 retained
	small := tlv(octTag, jpegBytes(100))
	kept := tlv(octTag, jpegBytes(101))

	fd, err := ParseDG2(dg2Blob(append(small, kept...)))
	require.NoError(t, err)
	require.Equal(t, 1, fd.FaceCount)
	assert.Equal(t, 101, fd.FaceImages[0].Size)
}

func Test_ParseDG2MultipleFaces(t *testing.T) {
	a := tlv(octTag, facContainer(jpegBytes(512)))
	b := tlv(octTag, facContainer(jpegBytes(1024)))

	fd, err := ParseDG2(dg2Blob(append(a, b...)))
	require.NoError(t, err)
	assert.Equal(t, 2, fd.FaceCount)
	assert.Equal(t, 512, fd.FaceImages[0].Size)
	assert.Equal(t, 1024, fd.FaceImages[1].Size)
}

func Test_ParseDG2JPEG2000(t *testing.T) {
	img := make([]byte, 512)
	copy(img, jp2Magic)
	faceInfo := tlv(octTag, facContainer(img))

	fd, err := ParseDG2(dg2Blob(faceInfo))
	require.NoError(t, err)
	require.Equal(t, 1, fd.FaceCount)
	assert.Equal(t, FormatJPEG2000, fd.FaceImages[0].Format)
	assert.Contains(t, fd.FaceImages[0].DataURL, "image/jp2")
}

func Test_ParseDG2UnknownFormat(t *testing.T) {
	img := make([]byte, 512)
	for i := range img {
		img[i] = 0xAB
	}
	faceInfo := tlv(octTag, img)

	fd, err := ParseDG2(dg2Blob(faceInfo))
	require.NoError(t, err)
	require.Equal(t, 1, fd.FaceCount)
	assert.Equal(t, FormatUnknown, fd.FaceImages[0].Format)
}

func Test_ParseDG2Malformed(t *testing.T) {
	_, err := ParseDG2([]byte{0x02, 0x01, 0x01})
	require.Error(t, err)

	_, err = ParseDG2([]byte{0x30, 0x00})
	require.Error(t, err)
}
