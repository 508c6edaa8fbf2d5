package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"purikura/internal/booth"
	"purikura/internal/camera"
	"purikura/internal/config"
	"purikura/internal/filter"
	"purikura/internal/strip"
)

// Handler は各エンドポイントの実装
type Handler struct {
	config *config.Config
	booth  Booth
	logger *zap.Logger
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// Index は撮影画面を返す
func (h *Handler) Index(c *gin.Context) {
	data, err := indexHTML()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

// GetFilters はフィルター一覧を返す
func (h *Handler) GetFilters(c *gin.Context) {
	all := filter.All()
	filters := make([]FilterInfo, 0, len(all))
	for _, d := range all {
		filters = append(filters, newFilterInfo(d))
	}

	c.JSON(http.StatusOK, FiltersResponse{
		Filters: filters,
		Default: h.config.Booth.DefaultFilter,
	})
}

// GetSession は現在のセッション状態を返す
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.booth.Snapshot())
}

// GetEvents は状態が変わるたびにSSEでセッション状態を配信する
func (h *Handler) GetEvents(c *gin.Context) {
	updates, unsubscribe := h.booth.Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", snap)
			return true
		}
	})
}

// StartSession はセッションを開始する（カメラ取得は非同期）
func (h *Handler) StartSession(c *gin.Context) {
	h.command(c, http.StatusAccepted, h.booth.Start)
}

// SelectFilter はフィルターを選ぶ
func (h *Handler) SelectFilter(c *gin.Context) {
	var req SelectFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid_request",
			Message:   "フィルターIDを指定してください",
			Details:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	h.command(c, http.StatusOK, func() error { return h.booth.SelectFilter(req.ID) })
}

// Shutter はカウントダウンを始める
func (h *Handler) Shutter(c *gin.Context) {
	h.command(c, http.StatusAccepted, h.booth.Shutter)
}

// Reset は撮影をやり直す
func (h *Handler) Reset(c *gin.Context) {
	h.command(c, http.StatusOK, h.booth.Reset)
}

func (h *Handler) command(c *gin.Context, status int, run func() error) {
	if err := run(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, h.booth.Snapshot())
}

// GetPreview はMJPEGでライブプレビューを配信する
func (h *Handler) GetPreview(c *gin.Context) {
	stream, err := h.booth.Stream()
	if err != nil {
		// カメラの取得に失敗している場合はその理由を返す
		if deviceErr := h.booth.Snapshot().DeviceErr; deviceErr != nil {
			err = deviceErr
		}
		h.respondError(c, err)
		return
	}

	h.streamMJPEG(c, stream)
}

// GetStill はindex番目の静止画を返す
func (h *Handler) GetStill(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid_index",
			Message:   "写真の番号が不正です",
			Details:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	still, err := h.booth.Still(index)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", still.Data)
}

// GetStrip は合成したストリップをJPEGでダウンロードさせる
func (h *Handler) GetStrip(c *gin.Context) {
	comp, err := h.booth.Composite()
	if err != nil {
		h.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := strip.Export(comp, &buf, h.config.Strip.ExportQuality); err != nil {
		h.respondError(c, err)
		return
	}

	filename := strip.Filename(h.config.Strip.FilenamePrefix, time.Now())
	h.logger.Info("ストリップを書き出しました", zap.String("filename", filename), zap.Int("bytes", buf.Len()))

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
}

// ヘルパー関数

type errorClass struct {
	status  int
	code    string
	message string
}

// classifyError はエラーをHTTPステータスと利用者向けの文言に変換する
func classifyError(err error) errorClass {
	switch {
	case errors.Is(err, booth.ErrInvalidPhase):
		return errorClass{http.StatusConflict, "invalid_phase", "現在の画面ではこの操作はできません"}
	case errors.Is(err, booth.ErrAlreadyCapturing):
		return errorClass{http.StatusConflict, "already_capturing", "撮影中です"}
	case errors.Is(err, booth.ErrLimitReached):
		return errorClass{http.StatusConflict, "limit_reached", fmt.Sprintf("撮影できるのは%d枚までです", booth.MaxStills)}
	case errors.Is(err, booth.ErrUnknownFilter):
		return errorClass{http.StatusBadRequest, "unknown_filter", "不明なフィルターです"}
	case errors.Is(err, booth.ErrStillNotFound):
		return errorClass{http.StatusNotFound, "still_not_found", "指定された写真が見つかりません"}
	case errors.Is(err, booth.ErrStripNotReady), errors.Is(err, strip.ErrIncompleteStrip):
		return errorClass{http.StatusNotFound, "strip_not_ready", "まだ仕上がっていません"}
	case errors.Is(err, booth.ErrClosed):
		return errorClass{http.StatusServiceUnavailable, "session_closed", "セッションは終了しています"}
	}
	return errorClass{http.StatusInternalServerError, "internal_error", "内部エラーが発生しました"}
}

// respondError はエラーをJSONで返す
func (h *Handler) respondError(c *gin.Context, err error) {
	resp := ErrorResponse{
		Details:   err.Error(),
		Timestamp: time.Now(),
	}
	var status int
	var deviceErr *camera.DeviceError
	if errors.As(err, &deviceErr) {
		status = http.StatusServiceUnavailable
		resp.Error = string(deviceErr.Kind)
		resp.Message = deviceErr.Message
		resp.Hints = deviceErr.Hints
	} else {
		class := classifyError(err)
		status = class.status
		resp.Error = class.code
		resp.Message = class.message
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("リクエストの処理に失敗しました", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, resp)
}

// streamMJPEG はMJPEGストリームを配信する
func (h *Handler) streamMJPEG(c *gin.Context, stream camera.Stream) {
	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// レスポンスライターを取得
	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	// フレームチャンネルを取得
	frameChan, unsubscribe := stream.Subscribe()
	defer unsubscribe()

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	writeFrame := func(frame []byte) error {
		if _, err := fmt.Fprintf(writer, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
			return err
		}
		if _, err := writer.Write(frame); err != nil {
			return err
		}
		if _, err := writer.Write([]byte("\r\n")); err != nil {
			return err
		}
		// バッファをフラッシュ
		flusher.Flush()
		return nil
	}

	// 接続直後に最新フレームを送る
	if frame, err := stream.LatestFrame(); err == nil {
		if err := writeFrame(frame); err != nil {
			return
		}
	}

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return

		case frame, ok := <-frameChan:
			if !ok {
				// チャンネルがクローズされた
				return
			}
			if err := writeFrame(frame); err != nil {
				return
			}
		}
	}
}
