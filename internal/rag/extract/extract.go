// Package extract 把上传文件转换为有序的文本元素。
package extract

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType 文件类型不支持。
var ErrUnsupportedType = errors.New("unsupported file type")

// Extractor 从文件中提取文本元素，元素已去除首尾空白且非空。
type Extractor interface {
	Extract(ctx context.Context, r io.ReaderAt, size int64) ([]string, error)
}

// ExtractorFunc 适配普通函数。
type ExtractorFunc func(ctx context.Context, r io.ReaderAt, size int64) ([]string, error)

// Extract 调用 f。
func (f ExtractorFunc) Extract(ctx context.Context, r io.ReaderAt, size int64) ([]string, error) {
	return f(ctx, r, size)
}

// ErrNoReadablePages PDF 的所有页面都无法解析。
var ErrNoReadablePages = errors.New("no readable pages in PDF")

// PDF 按页顺序提取纯文本，每行一个元素。
type PDF struct{}

// Extract 解析 PDF。无法解析的页面被跳过并记录警告；全部页面都失败时返回错误。
func (PDF) Extract(ctx context.Context, r io.ReaderAt, size int64) (elements []string, err error) {
	defer func() {
		if p := recover(); p != nil {
			elements, err = nil, fmt.Errorf("failed to parse PDF: %v", p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}
	return extractPages(ctx, pdfPages{reader})
}

// pageSource 是按页读取文本的文档，页码从 1 开始。
// 空页返回 ok=false。
type pageSource interface {
	NumPage() int
	PageText(n int) (text string, ok bool, err error)
}

type pdfPages struct {
	r *pdf.Reader
}

func (p pdfPages) NumPage() int {
	return p.r.NumPage()
}

func (p pdfPages) PageText(n int) (string, bool, error) {
	page := p.r.Page(n)
	if page.V.IsNull() {
		return "", false, nil
	}
	text, err := page.GetPlainText(nil)
	return text, true, err
}

func extractPages(ctx context.Context, src pageSource) ([]string, error) {
	var (
		elements []string
		skipped  []int
		readable int
	)
	for n := 1; n <= src.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, ok, err := src.PageText(n)
		if err != nil {
			skipped = append(skipped, n)
			logger.Warnw("PDF page skipped", "page", n, "error", err.Error())
			continue
		}
		if !ok {
			continue
		}
		readable++
		elements = append(elements, splitLines(text)...)
	}

	if len(skipped) > 0 {
		if readable == 0 {
			return nil, fmt.Errorf("%w: %d pages failed", ErrNoReadablePages, len(skipped))
		}
		logger.Warnw("PDF extracted with unreadable pages",
			"pages", src.NumPage(),
			"skipped", skipped,
		)
	}
	return elements, nil
}

// Text 提取纯文本文件，每行一个元素。
type Text struct{}

// Extract 读取全部行。
func (Text) Extract(ctx context.Context, r io.ReaderAt, size int64) ([]string, error) {
	var elements []string
	sc := bufio.NewScanner(io.NewSectionReader(r, 0, size))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			elements = append(elements, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}
	return elements, ctx.Err()
}

// ForFile 按扩展名选择提取器。
func ForFile(name string) (Extractor, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return PDF{}, nil
	case ".txt", ".md":
		return Text{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(name))
	}
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
