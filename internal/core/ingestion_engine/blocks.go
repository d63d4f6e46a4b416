package ingestion_engine

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

// Blob types written on text-path objects.
const (
	BlobJSON = "json"
	BlobCSV  = "csv"
	BlobText = "text"
)

const (
	defaultSender   = "User"
	defaultReceiver = "ChatBot"
)

func blobTypeFor(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".json", ".jsonl":
		return BlobJSON
	case ".csv":
		return BlobCSV
	default:
		return BlobText
	}
}

// formatStructured renders the block every text-path chunk is cut from.
func formatStructured(sender, receiver, title, content string, meta models.DocumentMetadata) string {
	return fmt.Sprintf(`sender_name: "%s", receiver_name: "%s", title: "%s"; content: "%s"; category: "%s"; department: "%s"; effective_date: "%s";`,
		sender, receiver, title, content, meta.Category, meta.Department, meta.EffectiveDate)
}

// jsonBlocks turns a JSON array, a single object or JSON Lines into one block
// per item that has content. Unparsable lines are logged and skipped.
func jsonBlocks(fileName, content, today string) ([]block, error) {
	items, err := decodeJSONItems(fileName, content)
	if err != nil {
		return nil, err
	}

	blocks := make([]block, 0, len(items))
	for n, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			log.Debug("skipping non-object json item", "file", fileName, "item", n+1)
			continue
		}
		text := firstField(item, "content", "text")
		if text == "" {
			log.Debug("skipping json item without content", "file", fileName, "item", n+1)
			continue
		}

		title := firstField(item, "title", "name")
		if title == "" {
			title = fmt.Sprintf("Item %d", n+1)
		}
		meta := models.DocumentMetadata{
			Category:      orDefault(firstField(item, "category"), defaultCategory),
			Department:    orDefault(firstField(item, "department"), defaultDepartment),
			EffectiveDate: orDefault(firstField(item, "effective_date"), today),
		}
		blocks = append(blocks, block{
			title: title,
			text: formatStructured(
				orDefault(firstField(item, "sender_name"), defaultSender),
				orDefault(firstField(item, "receiver_name"), defaultReceiver),
				title, text, meta,
			),
			numbered: true,
		})
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s has no items with content", core.ErrParse, fileName)
	}
	return blocks, nil
}

func decodeJSONItems(fileName, content string) ([]any, error) {
	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err == nil {
		if list, ok := doc.([]any); ok {
			return list, nil
		}
		return []any{doc}, nil
	}

	var items []any
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var item any
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			log.Warn("skipping unparsable jsonl line", "file", fileName, "line", i+1, "error", err)
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s is neither JSON nor JSON Lines", core.ErrParse, fileName)
	}
	return items, nil
}

// firstField returns the first key holding a non-empty value, rendered as
// text. Zero numbers and false count as empty.
func firstField(item map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := item[k].(type) {
		case nil:
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v != 0 {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		case bool:
			if v {
				return "true"
			}
		default:
			if b, err := json.Marshal(v); err == nil {
				return string(b)
			}
		}
	}
	return ""
}

// csvBlocks makes one "header: value; ..." block per data row. Each line is
// one row: quoted commas are honoured, and a line the csv reader rejects is
// split on plain commas instead. Missing cells render empty; cells beyond the
// header are dropped.
func csvBlocks(fileName, content string) ([]block, error) {
	var header []string
	var blocks []block
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := csvFields(fileName, i+1, line)
		if header == nil {
			header = fields
			continue
		}

		pairs := make([]string, len(header))
		for j, h := range header {
			var v string
			if j < len(fields) {
				v = fields[j]
			}
			pairs[j] = h + ": " + v
		}
		blocks = append(blocks, block{
			title:    fmt.Sprintf("%s - Row %d", fileName, len(blocks)+1),
			text:     strings.Join(pairs, "; "),
			numbered: true,
		})
	}

	if header == nil {
		return nil, fmt.Errorf("%w: %s has no header", core.ErrParse, fileName)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s has no data rows", core.ErrParse, fileName)
	}
	return blocks, nil
}

func csvFields(fileName string, lineNo int, line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err == nil {
		return fields
	}
	log.Warn("malformed csv line, splitting on commas", "file", fileName, "line", lineNo, "error", err)
	return strings.Split(line, ",")
}

// textBlock wraps a whole document. Every chunk carries the enriched title.
func textBlock(sender, content string, meta models.DocumentMetadata) block {
	return block{
		title: meta.Title,
		text: formatStructured(sender, defaultReceiver, meta.Title,
			strings.ReplaceAll(content, `"`, `\"`), meta),
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
