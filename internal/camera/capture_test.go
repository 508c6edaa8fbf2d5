package camera

import (
	"bufio"
	"bytes"
	"context"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeJPEG(body ...byte) []byte {
	out := append([]byte{}, jpegSOI...)
	out = append(out, body...)
	return append(out, jpegEOI...)
}

func TestSplitJPEG(t *testing.T) {
	first := fakeJPEG(0x01, 0x02, 0xFF, 0x00)
	second := fakeJPEG(0x03)

	var stream []byte
	stream = append(stream, 0x00, 0x11) // 先頭のゴミ
	stream = append(stream, first...)
	stream = append(stream, second...)
	stream = append(stream, jpegSOI...) // 途中で切れたフレーム
	stream = append(stream, 0x04)

	scanner := bufio.NewScanner(bytes.NewReader(stream))
	scanner.Split(splitJPEG)

	var frames [][]byte
	for scanner.Scan() {
		frames = append(frames, append([]byte(nil), scanner.Bytes()...))
	}
	require.NoError(t, scanner.Err())

	require.Len(t, frames, 2)
	assert.Equal(t, first, frames[0])
	assert.Equal(t, second, frames[1])
}

func TestReadJPEGFrames_SplitAcrossReads(t *testing.T) {
	frame := fakeJPEG(0x10, 0x20, 0x30)
	data := append(append([]byte{}, frame...), frame...)

	frameChan := make(chan []byte, 4)
	err := readJPEGFrames(context.Background(), iotest.OneByteReader(bytes.NewReader(data)), frameChan)
	require.NoError(t, err)

	close(frameChan)
	var got [][]byte
	for f := range frameChan {
		got = append(got, f)
	}
	require.Len(t, got, 2)
	assert.Equal(t, frame, got[0])
	assert.Equal(t, frame, got[1])
}

func TestFFmpegCapturer_InputArgs(t *testing.T) {
	testCases := []struct {
		name     string
		capturer *FFmpegCapturer
		want     []string
	}{
		{
			name:     "v4l2で解像度あり",
			capturer: NewFFmpegCapturer("", SourceV4L2, "/dev/video0", 1280, 720, 15),
			want:     []string{"-f", "v4l2", "-video_size", "1280x720", "-framerate", "15", "-i", "/dev/video0"},
		},
		{
			name: "v4l2でMJPEG入力",
			capturer: &FFmpegCapturer{
				binary: "ffmpeg", source: SourceV4L2, target: "/dev/video0",
				width: 640, height: 480, inputFormat: "mjpeg",
			},
			want: []string{"-f", "v4l2", "-input_format", "mjpeg", "-video_size", "640x480", "-i", "/dev/video0"},
		},
		{
			name:     "v4l2で無条件",
			capturer: NewFFmpegCapturer("", SourceV4L2, "/dev/video0", 0, 0, 0),
			want:     []string{"-f", "v4l2", "-i", "/dev/video0"},
		},
		{
			name:     "x11grab",
			capturer: NewFFmpegCapturer("", SourceX11, ":0.0", 640, 480, 10),
			want:     []string{"-f", "x11grab", "-video_size", "640x480", "-framerate", "10", "-i", ":0.0"},
		},
		{
			name:     "テストパターンは既定サイズを補う",
			capturer: NewFFmpegCapturer("", SourceTestPattern, "", 0, 0, 0),
			want:     []string{"-f", "lavfi", "-i", "testsrc=size=640x480:rate=15"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.capturer.inputArgs())
			assert.Equal(t, "ffmpeg", tc.capturer.binary)
		})
	}
}
