// Package server は、撮影画面とセッション操作のHTTPサーバーを管理します。
//
// 責務:
//   - 撮影画面（HTML/CSS/JS）の配信
//   - セッション操作（開始・フィルター選択・シャッター・リセット）の受付
//   - セッション状態のSSE配信
//   - ライブプレビューのMJPEG配信
//   - 静止画と合成ストリップのダウンロード
//
// 仕様:
//   - ginを使用
//   - 既定ではループバックアドレスのみで待ち受ける
//   - グレースフルシャットダウンに対応
package server
