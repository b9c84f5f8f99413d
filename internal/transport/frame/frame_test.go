package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	payload := []byte("ping")
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, payload, DefaultLimits()))
	require.Equal(t, []byte{0, 0, 0, 4}, buf.Bytes()[:HeaderSize])

	out, err := ReadFrame(&buf, DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestReadFrameZeroLengthIsKeepAlive(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, nil, DefaultLimits()))

	out, err := ReadFrame(&buf, DefaultLimits())
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	limits := Limits{MaxFrameSize: 4}
	_, err := Encode([]byte("toolong"), limits)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameRejectsOversizedAnnouncedLength(t *testing.T) {
	limits := Limits{MaxFrameSize: 4}
	hdr := EncodeLength(5)
	_, err := ReadFrame(bytes.NewReader(hdr[:]), limits)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameEOFOnHeaderIsPeerClosed(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), DefaultLimits())
	require.ErrorIs(t, err, ErrPeerClosed)
}

func TestReadFrameUnexpectedEOFMidHeaderIsPeerClosed(t *testing.T) {
	hdr := EncodeLength(4)
	_, err := ReadFrame(bytes.NewReader(hdr[:2]), DefaultLimits())
	require.ErrorIs(t, err, ErrPeerClosed)
	require.False(t, errors.Is(err, ErrReadError))
}

func TestReadFrameEOFMidPayloadIsReadError(t *testing.T) {
	hdr := EncodeLength(4)
	_, err := ReadFrame(bytes.NewReader(append(hdr[:], 'a', 'b')), DefaultLimits())
	require.ErrorIs(t, err, ErrReadError)
	require.False(t, errors.Is(err, ErrPeerClosed))
}

func TestLimitsValidate(t *testing.T) {
	require.NoError(t, DefaultLimits().Validate())
	require.ErrorIs(t, Limits{}.Validate(), ErrLimitInvalid)
}
