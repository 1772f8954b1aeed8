package utils

import (
	"sort"
	"strings"
)

// Label 是请求链路上的可解释标记：哪个来源产出了结果、以什么状态产出。
// Value 例如 personal / default / ok / degraded；Source 是写入者（offline / online / gate）。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// MergeLabel 合并同名 Label，保留历史：
// - Value: 以 '|' 累积
// - Source: 以 ',' 累积
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}

// FlattenLabels 把 Label 集合压平为 key -> value，用于响应体的 explain 字段。
func FlattenLabels(labels map[string]Label) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, l := range labels {
		out[k] = l.Value
	}
	return out
}

// FormatLabels 以稳定顺序输出 "k=v,k=v"，用于日志字段。
func FormatLabels(labels map[string]Label) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k].Value)
	}
	return b.String()
}
