package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	videoDevicePattern = regexp.MustCompile(`^/dev/video(\d+)$`)
	frameSizePattern   = regexp.MustCompile(`Size: Discrete (\d+)x(\d+)`)
)

// LinuxDiscovery はv4l2-ctlを使ってカメラデバイスを検出する
type LinuxDiscovery struct {
	ctlPath string
	pattern string
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewLinuxDiscovery は新しいLinuxDiscoveryを作成する
func NewLinuxDiscovery() *LinuxDiscovery {
	return &LinuxDiscovery{
		ctlPath: "v4l2-ctl",
		pattern: "/dev/video*",
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// ScanDevices はカラー映像を出せるカメラをデバイス番号順に返す
// 同じ物理カメラの複数ノードは最も小さい番号だけを残す
func (d *LinuxDiscovery) ScanDevices(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(d.pattern)
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	var devices []string
	seenNames := make(map[string]bool)
	for _, device := range matches {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if !d.IsDeviceAvailable(ctx, device) {
			continue
		}

		formats, err := d.run(ctx, d.ctlPath, "--device", device, "--list-formats-ext")
		if err != nil || !hasColorFormat(string(formats)) {
			continue
		}

		if name := d.cardName(ctx, device); name != "" {
			if seenNames[name] {
				continue
			}
			seenNames[name] = true
		}
		devices = append(devices, device)
	}

	return devices, nil
}

// IsDeviceAvailable はデバイスファイルが存在して読み取れるかを返す
func (d *LinuxDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	if !videoDevicePattern.MatchString(device) {
		return false
	}

	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}

// GetDeviceInfo はデバイスの名前と対応解像度を返す
func (d *LinuxDiscovery) GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error) {
	if !d.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが利用できません: %s", device)
	}

	info := &DeviceInfo{
		Device: device,
		Name:   d.cardName(ctx, device),
		Driver: "v4l2",
	}
	if info.Name == "" {
		info.Name = fmt.Sprintf("カメラ %d", extractDeviceNumber(device))
	}

	if out, err := d.run(ctx, d.ctlPath, "--device", device, "--list-formats-ext"); err == nil {
		info.Formats, info.Resolutions = parseFormats(string(out))
	}

	return info, nil
}

// cardName はv4l2-ctl --info の "Card type" を返す
func (d *LinuxDiscovery) cardName(ctx context.Context, device string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := d.run(ctx, d.ctlPath, "--device", device, "--info")
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Card type") {
			continue
		}
		if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// hasColorFormat はグレースケール専用のノード（IRカメラ等）を除外する
func hasColorFormat(formats string) bool {
	return strings.Contains(formats, "YUYV") || strings.Contains(formats, "MJPG")
}

// parseFormats は --list-formats-ext の出力からフォーマットと解像度を取り出す
func parseFormats(out string) ([]string, []Resolution) {
	var formats []string
	var resolutions []Resolution
	seen := make(map[Resolution]bool)

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") && strings.Contains(line, "]") {
			formats = append(formats, line)
			continue
		}
		m := frameSizePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		r := Resolution{Width: w, Height: h}
		if !seen[r] {
			seen[r] = true
			resolutions = append(resolutions, r)
		}
	}
	return formats, resolutions
}

// extractDeviceNumber は /dev/videoXX から XX を取り出す
func extractDeviceNumber(device string) int {
	m := videoDevicePattern.FindStringSubmatch(device)
	if len(m) < 2 {
		return 0
	}
	num, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return num
}
