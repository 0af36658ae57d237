// Package pipeline 提供批量样本的CSV摄取与清洗
package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"noiseshield/engine"
)

// RawSample 一行CSV解析出的原始样本
type RawSample struct {
	Row    int                `json:"row"`
	Values map[string]float64 `json:"values"`
	Label  *int               `json:"label,omitempty"`
}

// RowError 单行解析错误（行间互不影响）
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ReadSamplesCSV 从CSV读取样本。首行为表头，列名与域schema的特征名
// 匹配（大小写不敏感），可带可选的label列；多余的列被忽略。
// 非UTF-8输入按GBK转码（田间表格工具导出的常见编码）。
// 解析失败的行记录为RowError，不中断其余行。
func ReadSamplesCSV(r io.Reader, schema engine.Schema) ([]RawSample, []RowError, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	if !utf8.Valid(payload) {
		decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(payload), simplifiedchinese.GBK.NewDecoder()))
		if err != nil {
			return nil, nil, fmt.Errorf("transcode csv: %w", err)
		}
		payload = decoded
	}

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make(map[int]string) // column index -> feature name
	labelCol := -1
	seen := make(map[string]bool)
	for i, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "label" {
			labelCol = i
			continue
		}
		for _, feature := range schema.Features {
			if normalized == feature {
				columns[i] = feature
				seen[feature] = true
			}
		}
	}
	for _, feature := range schema.Features {
		if !seen[feature] {
			return nil, nil, fmt.Errorf("csv header missing feature %q for domain %s", feature, schema.Domain)
		}
	}

	var samples []RawSample
	var rowErrors []RowError
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: row, Message: err.Error()})
			continue
		}

		values := make(map[string]float64, len(schema.Features))
		var rowErr *RowError
		for i, feature := range columns {
			if i >= len(record) {
				rowErr = &RowError{Row: row, Message: fmt.Sprintf("missing column for %s", feature)}
				break
			}
			value, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				rowErr = &RowError{Row: row, Message: fmt.Sprintf("feature %s: %v", feature, err)}
				break
			}
			values[feature] = value
		}
		if rowErr != nil {
			rowErrors = append(rowErrors, *rowErr)
			continue
		}

		sample := RawSample{Row: row, Values: values}
		if labelCol >= 0 && labelCol < len(record) {
			label, err := strconv.Atoi(strings.TrimSpace(record[labelCol]))
			if err != nil || (label != 0 && label != 1) {
				rowErrors = append(rowErrors, RowError{Row: row, Message: "label must be 0 or 1"})
				continue
			}
			sample.Label = &label
		}
		samples = append(samples, sample)
	}

	return samples, rowErrors, nil
}
