// Package camera カメラの取得・ライブ配信・解放を担う
//
// # 責務
// - 取得条件（理想解像度＋前面、無条件、固定解像度）を優先順に試すフォールバック
// - 最初のフレーム到着をもってプレビューの準備完了とし、制限時間内に来なければエラーとする
// - ライブフレームの保持とプレビュー購読者への配信
// - セッション終了時のデバイス解放
//
// # 仕様
// - Manager: Acquire / Release
// - FFmpegPlatform: v4l2・x11grab・lavfi を入力とするffmpegプロセスでMJPEGを取得
// - LinuxDiscovery: /dev/video* の検出とv4l2-ctlによる実名取得
// - DeviceError: ユーザーにそのまま表示するメッセージと対処方法を持つ
//
// # 前提要件
//   - ffmpeg: 画像キャプチャとストリーミングに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - v4l-utils: カメラ名の取得に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
