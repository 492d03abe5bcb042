package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Tiliavir/psp/internal/filetypes"
	"github.com/Tiliavir/psp/internal/model"
	"github.com/Tiliavir/psp/internal/pathfind"
	"github.com/Tiliavir/psp/internal/timecalc"
)

// DumperConfig configures a Dumper. Use DefaultDumperConfig for the usual
// settings.
type DumperConfig struct {
	// BaseDir is where exported files go. Empty keeps every payload inline.
	BaseDir string
	// Paths are the lookup patterns written to the archive; nil means ["."].
	Paths []string
	// TimeZone is the archive default zone. Entry times with the same
	// offset are written without one.
	TimeZone string
	// Extra top-level keys written as is.
	Extra map[string]any

	Warnings     WarningPolicy
	KindPolicies map[WarningKind]WarningPolicy
	OnWarning    func(*Warning)

	Registry *filetypes.Registry
	Inferrer filetypes.Inferrer
	Codecs   map[string]Codec
	// DataEncoding names the codec for inline binary data.
	DataEncoding string
	// ExportTextTypes lists text types that are exported like binary ones.
	ExportTextTypes []string
	AssetsDir       string
	BundleDir       string

	// ExportLayout picks the export directory of an entry: dir may be
	// shortened in input paths, sub is kept in front of the file name.
	ExportLayout func(e *model.Entry) (dir, sub string)
	// InputPath, when it returns true, supplies the input path of an entry
	// instead of exporting it. The path must resolve to the entry's data.
	InputPath func(e *model.Entry) (string, bool)

	Indent string
	Logger *slog.Logger // Optional, uses slog.Default() if nil
}

// DefaultDumperConfig returns the usual dumper settings.
func DefaultDumperConfig() DumperConfig {
	return DumperConfig{
		Paths:        []string{"."},
		DataEncoding: DefaultEncoding,
		AssetsDir:    "assets",
		BundleDir:    "doc",
		Indent:       "  ",
	}
}

// Dumper writes panels as archive JSON and exports payloads that are not
// kept inline.
type Dumper struct {
	cfg        DumperConfig
	inf        filetypes.Inferrer
	codec      Codec
	tz         *time.Location
	finder     *pathfind.Finder
	exportText map[string]bool
	logger     *slog.Logger
	warn       *warner

	created []string
}

// NewDumper validates cfg and returns a Dumper.
func NewDumper(cfg DumperConfig) (*Dumper, error) {
	if cfg.Warnings < WarnEmit || cfg.Warnings > WarnError {
		return nil, fmt.Errorf("invalid warning policy %d", cfg.Warnings)
	}
	if cfg.Paths == nil {
		cfg.Paths = []string{"."}
	}
	if cfg.DataEncoding == "" {
		cfg.DataEncoding = DefaultEncoding
	}
	if cfg.AssetsDir == "" {
		cfg.AssetsDir = "assets"
	}
	if cfg.BundleDir == "" {
		cfg.BundleDir = "doc"
	}
	d := &Dumper{cfg: cfg, inf: cfg.Inferrer, exportText: map[string]bool{}}
	if d.inf == nil {
		reg := cfg.Registry
		if reg == nil {
			reg = filetypes.NewRegistry()
		}
		d.inf = filetypes.NewInference(reg)
	}
	codecs := cfg.Codecs
	if codecs == nil {
		codecs = DefaultCodecs()
	}
	codec, ok := codecs[cfg.DataEncoding]
	if !ok || codec.Encode == nil {
		return nil, fmt.Errorf("invalid data encoding: %s", cfg.DataEncoding)
	}
	d.codec = codec
	if cfg.TimeZone != "" {
		tz, err := timecalc.ParseZone(cfg.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("time zone: %w", err)
		}
		d.tz = tz
	}
	if cfg.BaseDir != "" {
		finder, err := pathfind.New(cfg.BaseDir, cfg.Paths)
		if err != nil {
			return nil, err
		}
		d.finder = finder
	}
	for _, t := range cfg.ExportTextTypes {
		d.exportText[t] = true
	}
	d.logger = cfg.Logger
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.warn = &warner{
		op:      "dump",
		policy:  cfg.Warnings,
		perKind: cfg.KindPolicies,
		logger:  d.logger,
		onWarn:  cfg.OnWarning,
	}
	return d, nil
}

// Warnings returns the warnings emitted so far.
func (d *Dumper) Warnings() []*Warning {
	return d.warn.warnings
}

// Created lists the files and directories the last Dump created, in
// creation order.
func (d *Dumper) Created() []string {
	return slices.Clone(d.created)
}

// Dump writes panels to w. When dumping fails, the files exported so far are
// removed again.
func (d *Dumper) Dump(w io.Writer, panels []*model.Panel) error {
	d.created = nil
	session := uuid.NewString()
	d.warn.logger = d.logger.With("session", session)
	d.warn.logger.Debug("dumping archive", "panels", len(panels), "base_dir", d.cfg.BaseDir)

	doc, err := d.document(panels)
	d.warn.at(0, "", 0)
	if err == nil {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", d.cfg.Indent)
		if err = enc.Encode(doc); err != nil {
			err = &DumpError{Msg: "writing archive", Err: err}
		}
	}
	if err != nil {
		d.Cleanup()
		return err
	}
	d.warn.logger.Debug("archive dumped", "exported", len(d.created))
	return nil
}

// Cleanup removes what the last Dump created. Directories are only removed
// when empty.
func (d *Dumper) Cleanup() {
	for i := len(d.created) - 1; i >= 0; i-- {
		if err := os.Remove(d.created[i]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.logger.Debug("cleanup", "path", d.created[i], "error", err)
		}
	}
	d.created = nil
}

var reservedTopKeys = map[string]bool{"tz": true, "paths": true, "data": true}

func (d *Dumper) document(panels []*model.Panel) (*object, error) {
	top := newObject()
	if d.tz != nil {
		top.set("tz", timecalc.FormatZone(d.tz))
	}
	if !(len(d.cfg.Paths) == 1 && d.cfg.Paths[0] == ".") {
		top.set("paths", d.cfg.Paths)
	}
	keys := make([]string, 0, len(d.cfg.Extra))
	for k := range d.cfg.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if reservedTopKeys[k] {
			return nil, dumpErrorf("extra key %q is reserved", k)
		}
		top.set(k, d.cfg.Extra[k])
	}

	list := make([]any, 0, len(panels))
	for i, p := range panels {
		d.warn.at(i+1, p.Date().String(), 0)
		po, err := d.dumpPanel(p)
		if err != nil {
			var pe *PositionError
			if errors.As(err, &pe) {
				pe.Panel, pe.Date = i+1, p.Date().String()
				return nil, err
			}
			return nil, &PositionError{Panel: i + 1, Date: p.Date().String(), Err: err}
		}
		list = append(list, po)
	}
	if len(list) > 0 {
		top.set("data", list)
	}
	return top, nil
}

func (d *Dumper) dumpPanel(p *model.Panel) (*object, error) {
	o := newObject()
	o.set("date", p.Date().String())
	if r, ok := p.Rating(); ok {
		o.set("rating", r)
	}
	entries := make([]any, 0, p.Len())
	for j, e := range p.Entries() {
		d.warn.entry = j + 1
		eo, err := d.dumpEntry(e, p)
		if err != nil {
			return nil, &PositionError{Entry: j + 1, Err: err}
		}
		entries = append(entries, eo)
	}
	d.warn.entry = 0
	if len(entries) > 0 {
		o.set("entries", entries)
	}
	return o, nil
}

func (d *Dumper) dumpEntry(e *model.Entry, p *model.Panel) (*object, error) {
	for key := range e.Attrs {
		if !slices.Contains(model.AttrKeys, key) {
			return nil, dumpErrorf("unsupported entry attribute %q", key)
		}
	}

	o := newObject()
	t := e.Time()
	naive := d.tz != nil && timecalc.SameOffset(t, d.tz)
	if timecalc.DateOf(t) == p.Date() {
		o.set("time", timecalc.FormatClock(t, naive))
	} else {
		o.set("date-time", timecalc.FormatDateTime(t, naive))
	}
	if e.Insight() {
		o.set("insight", true)
	}

	var err error
	if e.Bundle != nil {
		err = d.dumpBundle(o, e, p)
	} else {
		err = d.dumpPayload(o, e, p)
	}
	if err != nil {
		return nil, err
	}

	for _, key := range model.AttrKeys {
		if v, ok := e.Attrs[key]; ok {
			o.set(key, v)
		}
	}
	if !e.Meta.IsZero() {
		mo, err := d.dumpMeta(e)
		if err != nil {
			return nil, err
		}
		o.set("meta", mo)
	}
	return o, nil
}

// inlineText reports whether e is kept inline as a JSON string.
func (d *Dumper) inlineText(e *model.Entry) bool {
	if e.Bundle != nil || e.Encoding() != filetypes.UTF8 || d.exportText[e.Type()] {
		return false
	}
	raw, err := e.Raw()
	return err == nil && utf8.Valid(raw)
}

func (d *Dumper) dumpPayload(o *object, e *model.Entry, p *model.Panel) error {
	input, exported, err := d.inputPath(e, p)
	if err != nil {
		return err
	}
	mode := modeBinary
	switch {
	case exported:
		mode = modeInput
	case d.inlineText(e):
		mode = modeText
	}
	if err := d.writeTypeFields(o, mode, input, e.Type(), e.Format, e.Encoding()); err != nil {
		return err
	}

	switch mode {
	case modeInput:
		o.set("input", input)
	case modeText:
		text, err := e.Text()
		if err != nil {
			return &DumpError{Msg: "reading entry text", Err: err}
		}
		o.set("data", text)
	default:
		raw, err := e.Raw()
		if err != nil {
			return &DumpError{Msg: "reading entry data", Err: err}
		}
		o.set("data", d.codec.Encode(raw))
		o.set("data-encoding", d.cfg.DataEncoding)
	}
	return nil
}

func (d *Dumper) writeTypeFields(o *object, mode payloadMode, path, typ string, format func() (string, bool), enc string) error {
	fmtName, hasFmt := format()
	tf, err := minimalTypeFields(d.inf, mode, path, typ, hasFmt, enc)
	if err != nil {
		return &DumpError{Msg: "cannot write type", Err: err}
	}
	switch {
	case usesTypeFormat(typ, hasFmt):
		if tf.Type {
			o.set("type-format", typ+"-"+fmtName)
		} else {
			o.set("format", fmtName)
		}
	case tf.Type:
		o.set("type", typ)
		if hasFmt {
			o.set("format", fmtName)
		}
	case hasFmt:
		o.set("format", fmtName)
	}
	if tf.Encoding {
		o.set("encoding", enc)
	}
	return nil
}

func (d *Dumper) dumpBundle(o *object, e *model.Entry, p *model.Panel) error {
	b := e.Bundle
	if e.Encoding() != model.Binary {
		return dumpErrorf("bundle entries must have the binary encoding, got %q", e.Encoding())
	}
	if _, ok := e.Format(); ok {
		return dumpErrorf("bundle entries cannot have a format")
	}
	if !model.SupportedBundle(e.Type()) {
		return dumpErrorf("unsupported bundle format %q", e.Type())
	}
	input, exported, err := d.inputPath(e, p)
	if err != nil {
		return err
	}

	data := newObject()
	data.set("main-file", b.MainFile)
	if exported {
		if d.inf.InferTypeFromPath(input) != e.Type() {
			o.set("format", e.Type())
		}
		data.set("input", input)
	} else {
		o.set("format", e.Type())
		raw, err := e.Raw()
		if err != nil {
			return &DumpError{Msg: "reading bundle data", Err: err}
		}
		data.set("raw", d.codec.Encode(raw))
		data.set("data-encoding", d.cfg.DataEncoding)
	}
	format := func() (string, bool) { return b.Format, b.HasFmt }
	if err := d.writeTypeFields(data, modeMainFile, b.MainFile, b.Type, format, b.Encoding); err != nil {
		return err
	}
	o.set("data", data)
	return nil
}

// inputPath returns the input path of e, exporting it when needed. ok is
// false when the payload stays inline.
func (d *Dumper) inputPath(e *model.Entry, p *model.Panel) (input string, ok bool, err error) {
	if d.cfg.InputPath != nil {
		if input, ok := d.cfg.InputPath(e); ok {
			return input, true, d.verifyInput(e, input)
		}
	}
	if d.finder == nil || d.inlineText(e) {
		return "", false, nil
	}

	dir, sub := d.layout(e)
	t := e.Time()
	name := timecalc.ExportStamp(t)
	if timecalc.DateOf(t) != p.Date() {
		name = p.Date().String() + "_" + name
	}
	base := filepath.Join(sub, name)
	ext := d.inf.DefaultExtension(e.Type())

	if parent, pattern, found := d.finder.NotShortest(base, dir); found {
		msg := fmt.Sprintf("%q is not the shortest reachable path for %q (parent directory %q matches the lookup path %q); name collisions may occur",
			base+ext, filepath.Join(dir, base+ext), parent, pattern)
		if err := d.warn.warn(WarnNotShortest, msg); err != nil {
			return "", false, err
		}
	}

	filename, err := d.finder.GenerateName(base, ext, dir, func(path string) (bool, error) {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return e.SameContent(path)
	})
	if err != nil {
		return "", false, &DumpError{Msg: "cannot export entry", Err: err}
	}
	if err := d.export(e, filepath.Join(dir, filename)); err != nil {
		return "", false, err
	}
	input = d.finder.ShortestInputPath(filename, dir)
	return input, true, d.verifyInput(e, input)
}

func (d *Dumper) layout(e *model.Entry) (dir, sub string) {
	if d.cfg.ExportLayout != nil {
		return d.cfg.ExportLayout(e)
	}
	if e.Bundle != nil {
		return d.cfg.BundleDir, ""
	}
	return d.cfg.AssetsDir, ""
}

// export writes the data of e to rel under the base directory, unless the
// file exists already.
func (d *Dumper) export(e *model.Entry, rel string) error {
	if err := d.finder.CheckRelPath(rel); err != nil {
		return &DumpError{Msg: "export path", Err: err}
	}
	path := filepath.Join(d.finder.BaseDir, rel)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := d.mkdirAll(filepath.Dir(path)); err != nil {
		return &DumpError{Msg: "creating export directory", Err: err}
	}

	src, err := e.Open()
	if err != nil {
		return &DumpError{Msg: "reading entry data", Err: err}
	}
	defer src.Close()
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return &DumpError{Msg: "exporting entry", Err: err}
	}
	d.created = append(d.created, path)
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return &DumpError{Msg: "exporting entry", Err: err}
	}
	if err := dst.Close(); err != nil {
		return &DumpError{Msg: "exporting entry", Err: err}
	}
	d.warn.logger.Debug("exported entry", "path", rel)
	return nil
}

// mkdirAll is os.MkdirAll that records the directories it creates.
func (d *Dumper) mkdirAll(dir string) error {
	var missing []string
	for p := dir; ; p = filepath.Dir(p) {
		if _, err := os.Stat(p); err == nil {
			break
		}
		missing = append(missing, p)
		if filepath.Dir(p) == p {
			break
		}
	}
	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Mkdir(missing[i], 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
		d.created = append(d.created, missing[i])
	}
	return nil
}

// verifyInput checks that input resolves through the lookup paths to a file
// holding the data of e.
func (d *Dumper) verifyInput(e *model.Entry, input string) error {
	if d.finder == nil {
		return dumpErrorf("base_dir must be set when there are input paths")
	}
	hits := d.finder.Find(input)
	if len(hits) == 0 {
		return dumpErrorf("unreachable input path %q", input)
	}
	if len(hits) > 1 {
		if err := d.warn.warn(WarnAmbiguousPath, fmt.Sprintf("more than one path found for input path %q", input)); err != nil {
			return err
		}
	}
	same, err := e.SameContent(hits[0])
	if err != nil {
		return &DumpError{Msg: "comparing entry data", Err: err}
	}
	if !same {
		return dumpErrorf("entry raw data differs from the content of %s (from the input path %q)", hits[0], input)
	}
	return nil
}

var reservedMetaKeys = map[string]bool{"created": true, "modified": true, "posted": true}

func (d *Dumper) dumpMeta(e *model.Entry) (*object, error) {
	m := e.Meta
	_, entryOff := e.Time().Zone()
	format := func(t time.Time) string {
		_, off := t.Zone()
		return timecalc.FormatDateTime(t, off == entryOff)
	}
	mo := newObject()
	if m.Created != nil {
		mo.set("created", format(*m.Created))
	}
	if m.Modified != nil && (m.Created == nil || !m.Modified.Equal(*m.Created)) {
		mo.set("modified", format(*m.Modified))
	}
	if m.Posted != nil {
		mo.set("posted", format(*m.Posted))
	}
	keys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if reservedMetaKeys[k] {
			return nil, dumpErrorf("metadata key %q is reserved", k)
		}
		mo.set(k, model.DeepCopy(m.Extra[k]))
	}
	return mo, nil
}
