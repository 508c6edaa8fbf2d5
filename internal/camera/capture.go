package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// FFmpegCapturer はffmpegを使って映像ソースからMJPEGを取得する
type FFmpegCapturer struct {
	binary string
	source SourceType
	target string // デバイスパス、ディスプレイ、またはlavfiの式
	width  int
	height int
	fps    int

	inputFormat string // v4l2の入力フォーマット（空なら指定しない）
}

// NewFFmpegCapturer は新しいFFmpegCapturerを作成する
// width, heightが0の場合は解像度を指定しない
func NewFFmpegCapturer(binary string, source SourceType, target string, width, height, fps int) *FFmpegCapturer {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegCapturer{
		binary: binary,
		source: source,
		target: target,
		width:  width,
		height: height,
		fps:    fps,
	}
}

// inputArgs はソース種別ごとの入力引数を返す
func (c *FFmpegCapturer) inputArgs() []string {
	var args []string
	switch c.source {
	case SourceTestPattern:
		width, height := c.width, c.height
		if width == 0 || height == 0 {
			width, height = 640, 480
		}
		fps := c.fps
		if fps <= 0 {
			fps = 15
		}
		expr := fmt.Sprintf("testsrc=size=%dx%d:rate=%d", width, height, fps)
		if c.target != "" {
			expr = c.target
		}
		return []string{"-f", "lavfi", "-i", expr}
	default:
		args = append(args, "-f", string(c.source))
		if c.inputFormat != "" {
			args = append(args, "-input_format", c.inputFormat)
		}
		if c.width > 0 && c.height > 0 {
			args = append(args, "-video_size", fmt.Sprintf("%dx%d", c.width, c.height))
		}
		if c.fps > 0 {
			args = append(args, "-framerate", strconv.Itoa(c.fps))
		}
		args = append(args, "-i", c.target)
	}
	return args
}

// CaptureFrame は1フレームをキャプチャしてJPEGバイト配列として返す
func (c *FFmpegCapturer) CaptureFrame(ctx context.Context) ([]byte, error) {
	args := append([]string{"-loglevel", "error"}, c.inputArgs()...)
	args = append(args,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", "2",
		"-",
	)
	cmd := exec.CommandContext(ctx, c.binary, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("フレームキャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}
	if !bytes.HasPrefix(stdout.Bytes(), jpegSOI) {
		return nil, fmt.Errorf("JPEGフレームが得られませんでした")
	}

	return stdout.Bytes(), nil
}

// TestCapture はデバイステスト用の簡単なキャプチャ機能
func (c *FFmpegCapturer) TestCapture(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.CaptureFrame(testCtx)
	return err
}

// StartStream は連続キャプチャを開始し、ffmpegが終了するまでフレームを送り続ける
// ctxのキャンセルでプロセスは終了する
func (c *FFmpegCapturer) StartStream(ctx context.Context, frameChan chan<- []byte, errorChan chan<- error) {
	args := append([]string{"-loglevel", "error"}, c.inputArgs()...)
	args = append(args,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)
	cmd := exec.CommandContext(ctx, c.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		sendError(ctx, errorChan, fmt.Errorf("stdoutパイプの作成に失敗: %w", err))
		return
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		sendError(ctx, errorChan, fmt.Errorf("ffmpegの起動に失敗: %w", err))
		return
	}

	readErr := readJPEGFrames(ctx, stdout, frameChan)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return // 停止要求による終了
	}
	if readErr != nil {
		sendError(ctx, errorChan, fmt.Errorf("フレーム読み取りエラー: %w", readErr))
		return
	}
	if waitErr != nil {
		sendError(ctx, errorChan, fmt.Errorf("ffmpegが終了しました: %w (stderr: %s)", waitErr, stderr.String()))
	}
}

// readJPEGFrames はMJPEGのバイト列をSOI/EOIマーカーで分割して送信する
func readJPEGFrames(ctx context.Context, r io.Reader, frameChan chan<- []byte) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	scanner.Split(splitJPEG)

	for scanner.Scan() {
		frame := make([]byte, len(scanner.Bytes()))
		copy(frame, scanner.Bytes())

		select {
		case frameChan <- frame:
		case <-ctx.Done():
			return nil
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	return nil
}

// splitJPEG はbufio.SplitFuncとしてJPEGフレームを1枚ずつ切り出す
// MJPEGのエントロピー符号化データ中の0xFFはスタッフィングされるため、EOIの検索で足りる
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		// 末尾の0xFFはSOIの前半かもしれないので残す
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		// 完全なフレームがまだない
		return start, nil, nil
	}

	end += start + len(jpegSOI) + len(jpegEOI)
	return end, data[start:end], nil
}

func sendError(ctx context.Context, errorChan chan<- error, err error) {
	select {
	case errorChan <- err:
	case <-ctx.Done():
	default:
	}
}
