package model

import (
	"fmt"
	"time"
)

// DisplayDateLayout はPDFとメールで使う日付表記（日/月/年）。
const DisplayDateLayout = "02/01/2006"

// FormatMoney は金額を "$1234.50" 形式で返す。
func FormatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// FormatDisplayDate は日時を表示用の日付に変換する。
func FormatDisplayDate(t time.Time) string {
	return t.UTC().Format(DisplayDateLayout)
}

// FormatDueDate はRFC 3339の期日文字列を表示用の日付に変換する。
// 解釈できない場合は入力をそのまま返す。
func FormatDueDate(s string) string {
	t, err := ParseDueDate(s)
	if err != nil {
		return s
	}
	return FormatDisplayDate(t)
}
