package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	_ "image/png"
	"text/template"
	"time"
)

// English Metric Units per inch, and the printable width used for the chart.
const (
	emuPerInch = 914400
	chartWidth = 6 * emuPerInch
)

// DOCX renders a WordprocessingML package.
type DOCX struct{}

type docxPart struct {
	name string
	body []byte
}

// Render assembles the package in memory.
func (DOCX) Render(report Report) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(report.Chart))
	if err != nil {
		return nil, fmt.Errorf("decode chart image: %w", err)
	}
	if cfg.Width == 0 {
		return nil, fmt.Errorf("chart image has zero width")
	}

	var doc bytes.Buffer
	err = documentTemplate.Execute(&doc, docxView{
		Title:     report.Title,
		Subtitle:  "Generated " + report.GeneratedAt.Format("2006-01-02 15:04") + " | " + Period(report.Summary),
		Values:    ValueLines(report.Summary),
		Changes:   ChangeLines(report.Summary),
		ChartCX:   chartWidth,
		ChartCY:   int64(chartWidth) * int64(cfg.Height) / int64(cfg.Width),
		ChartName: "chart.png",
	})
	if err != nil {
		return nil, fmt.Errorf("render document.xml: %w", err)
	}

	var core bytes.Buffer
	if err := coreTemplate.Execute(&core, coreView{Title: report.Title, Created: report.GeneratedAt.UTC().Format(time.RFC3339)}); err != nil {
		return nil, fmt.Errorf("render core.xml: %w", err)
	}

	parts := []docxPart{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(packageRelsXML)},
		{"docProps/core.xml", core.Bytes()},
		{"word/document.xml", doc.Bytes()},
		{"word/_rels/document.xml.rels", []byte(documentRelsXML)},
		{"word/media/chart.png", report.Chart},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: report.GeneratedAt})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p.body); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type docxView struct {
	Title     string
	Subtitle  string
	Values    []Line
	Changes   []Line
	ChartCX   int64
	ChartCY   int64
	ChartName string
}

type coreView struct {
	Title   string
	Created string
}

func escapeXML(s string) (string, error) {
	var b bytes.Buffer
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

var funcs = template.FuncMap{"x": escapeXML}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="png" ContentType="image/png"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rIdChart" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/chart.png"/>
</Relationships>`

var coreTemplate = template.Must(template.New("core").Funcs(funcs).Parse(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
<dc:title>{{x .Title}}</dc:title>
<dc:creator>trmreport</dc:creator>
<dcterms:created xsi:type="dcterms:W3CDTF">{{.Created}}</dcterms:created>
</cp:coreProperties>`))

var documentTemplate = template.Must(template.New("document").Funcs(funcs).Parse(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">
<w:body>
<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:rPr><w:b/><w:sz w:val="32"/></w:rPr><w:t>{{x .Title}}</w:t></w:r></w:p>
<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:rPr><w:sz w:val="20"/></w:rPr><w:t>{{x .Subtitle}}</w:t></w:r></w:p>
<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>Relevant values:</w:t></w:r></w:p>
{{- range .Values}}
<w:p><w:r><w:t xml:space="preserve">{{x .Label}}: {{x .Value}}</w:t></w:r></w:p>
{{- end}}
<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>Percentage change:</w:t></w:r></w:p>
{{- range .Changes}}
<w:p><w:r><w:t xml:space="preserve">{{x .Label}}: {{x .Value}}</w:t></w:r></w:p>
{{- end}}
<w:p><w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0"><wp:extent cx="{{.ChartCX}}" cy="{{.ChartCY}}"/><wp:docPr id="1" name="Chart"/><a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture"><pic:pic><pic:nvPicPr><pic:cNvPr id="0" name="{{.ChartName}}"/><pic:cNvPicPr/></pic:nvPicPr><pic:blipFill><a:blip r:embed="rIdChart"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill><pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="{{.ChartCX}}" cy="{{.ChartCY}}"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>
<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr>
</w:body>
</w:document>`))
