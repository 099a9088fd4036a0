// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"

	"github.com/staranto/assetctl/internal/attrs"
	"github.com/staranto/assetctl/internal/config"
	"github.com/staranto/assetctl/internal/filters"
)

// Formats accepted by --output.
var Formats = []string{"text", "json", "raw", "yaml"}

// ColorDefault enables color when stdout is a terminal and NO_COLOR is unset.
func ColorDefault() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Tag is one field of a report row schema.
type Tag struct {
	Name string
	Kind string
}

// SchemaOf lists the json field names of a report row struct, descending
// into nested structs one level.
func SchemaOf(typ reflect.Type) []Tag {
	tags := schemaWalker("", typ, 0)
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags
}

const maxSchemaDepth = 1

func schemaWalker(holder string, typ reflect.Type, depth int) []Tag {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil
	}

	var tags []Tag
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		if holder != "" {
			name = holder + "." + name
		}

		ft := field.Type
		kind := ft.Kind().String()
		if ft.Kind() == reflect.Slice {
			kind = "list"
		}
		tags = append(tags, Tag{Name: name, Kind: kind})

		if depth < maxSchemaDepth && ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			tags = append(tags, schemaWalker(name, ft, depth+1)...)
		}
	}
	return tags
}

// DumpSchema prints the fields usable with --attrs, --filter and --sort.
func DumpSchema(w io.Writer, typ reflect.Type) {
	tags := SchemaOf(typ)
	if len(tags) == 0 {
		log.Debugf("no tags found for type: %s", typ.Name())
		return
	}
	fmt.Fprintln(w, "Schema for", typ.Name(), "--")
	for _, tag := range tags {
		fmt.Fprintf(w, "%s (%s)\n", tag.Name, tag.Kind)
	}
}

// SliceDiceSpit filters, transforms, sorts and renders a report document
// according to the --output, --filter, --sort, --color and --titles flags.
// parent selects the array of rows inside raw; empty means raw is the array.
func SliceDiceSpit(raw bytes.Buffer, al attrs.AttrList, cmd *cli.Command, parent string, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}

	format := cmd.String("output")
	if format == "raw" {
		_, err := w.Write(raw.Bytes())
		return err
	}

	dataset := gjson.ParseBytes(raw.Bytes())
	if parent != "" {
		dataset = dataset.Get(parent)
	}

	rows := filters.FilterDataset(dataset, al, cmd.String("filter"))

	for _, row := range rows {
		for i := range al {
			if al[i].TransformSpec != "" {
				row[al[i].OutputKey] = al[i].Transform(row[al[i].OutputKey])
			}
		}
	}

	SortDataset(rows, cmd.String("sort"))

	// Columns hidden with ! only take part in filtering and sorting.
	for _, row := range rows {
		for _, attr := range al {
			if !attr.Include {
				delete(row, attr.OutputKey)
			}
		}
	}

	switch format {
	case "json":
		out, err := json.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "yaml":
		out, err := yaml.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		TableWriter(rows, al, cmd.Bool("color"), cmd.Bool("titles"), w)
		return nil
	}
}

// TableWriter renders rows as a borderless table with optional titles and
// alternating row colors.
func TableWriter(resultSet []map[string]interface{}, al attrs.AttrList, color, titles bool, w io.Writer) {
	if len(resultSet) == 0 {
		return
	}

	var (
		headerStyle  = lipgloss.NewStyle().Align(lipgloss.Left)
		cellStyle    = lipgloss.NewStyle().Padding(0, 0).Align(lipgloss.Left)
		evenRowStyle = cellStyle
		oddRowStyle  = cellStyle
	)

	if color {
		headerColor, evenColor, oddColor := getColors("colors")
		headerStyle = headerStyle.Foreground(lipgloss.Color(headerColor))
		evenRowStyle = evenRowStyle.Foreground(lipgloss.Color(evenColor))
		oddRowStyle = oddRowStyle.Foreground(lipgloss.Color(oddColor))
	}

	shown := al.Included()
	rows := make([][]string, 0, len(resultSet))
	for _, result := range resultSet {
		row := make([]string, 0, len(shown))
		for _, attr := range shown {
			row = append(row, InterfaceToString(result[attr.OutputKey], "-"))
		}
		rows = append(rows, row)
	}

	pad, _ := config.GetInt("padding", 2)

	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			switch {
			case row == table.HeaderRow:
				style = headerStyle
			case row%2 == 0:
				style = evenRowStyle
			default:
				style = oddRowStyle
			}
			if col > 0 {
				style = style.PaddingLeft(pad)
			}
			return style
		}).
		Rows(rows...)

	if titles {
		headers := make([]string, 0, len(shown))
		for _, attr := range shown {
			headers = append(headers, attr.OutputKey)
		}
		t = t.Headers(headers...).BorderHeader(false)
	}
	fmt.Fprintln(w, t)
}

func getColors(key string) (header string, even string, odd string) {
	header, _ = config.GetString(key+".title", "#f6be00")
	even, _ = config.GetString(key+".even", "#ffffff")
	odd, _ = config.GetString(key+".odd", "#00c8f0")
	return
}

// InterfaceToString renders a report value for a table cell. Zero values
// render as emptyValue, "" by default.
func InterfaceToString(value interface{}, emptyValue ...string) string {
	if len(emptyValue) == 0 {
		emptyValue = []string{""}
	}

	if value == nil || reflect.ValueOf(value).IsZero() {
		return emptyValue[0]
	}

	switch value := value.(type) {
	case string:
		return value
	case int:
		return strconv.Itoa(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case []interface{}:
		parts := make([]string, 0, len(value))
		for _, v := range value {
			parts = append(parts, InterfaceToString(v))
		}
		return strings.Join(parts, ",")
	default:
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(jsonBytes)
	}
}
