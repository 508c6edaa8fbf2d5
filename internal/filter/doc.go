// Package filter はキャプチャ時に適用するカラーフィルターのカタログを提供する
//
// # 責務
// - フィルターIDから変換記述子への静的な対応表
// - 調整（グレースケール、セピア、色相回転など）の順序付き適用
// - ライブプレビュー用のCSS filter表現の生成
//
// # 仕様
// - 各調整はCSS Filter Effectsと同じ行列・式で計算する
// - 調整は記述子に並んだ順に1つずつ適用し、各段で0..1にクランプする
// - カタログは起動時に一度だけ定義され、以後変更されない
package filter
