package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Tiliavir/psp/internal/filetypes"
	"github.com/Tiliavir/psp/internal/model"
	"github.com/Tiliavir/psp/internal/pathfind"
	"github.com/Tiliavir/psp/internal/textenc"
	"github.com/Tiliavir/psp/internal/timecalc"
)

// LoaderConfig configures a Loader. Use DefaultLoaderConfig for the usual
// settings.
type LoaderConfig struct {
	// BaseDir anchors the lookup paths of input references. Empty means
	// unset, in which case archives with input paths fail to load.
	BaseDir string

	CheckPanelOrder    bool
	CheckEntryOrder    bool
	WarnAmbiguousPaths bool

	Warnings     WarningPolicy
	KindPolicies map[WarningKind]WarningPolicy
	OnWarning    func(*Warning)

	Registry *filetypes.Registry // Optional, used when Inferrer is nil
	Inferrer filetypes.Inferrer  // Optional, overrides the registry-based inference
	Codecs   map[string]Codec    // Optional, uses DefaultCodecs() if nil
	Logger   *slog.Logger        // Optional, uses slog.Default() if nil
}

// DefaultLoaderConfig enables every consistency check.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		CheckPanelOrder:    true,
		CheckEntryOrder:    true,
		WarnAmbiguousPaths: true,
	}
}

// Loader turns archive JSON into panels.
type Loader struct {
	cfg    LoaderConfig
	inf    filetypes.Inferrer
	codecs map[string]Codec
	warn   *warner
}

// Attrs are the archive attributes in effect while loading a panel or entry.
type Attrs struct {
	TZ     *time.Location
	Paths  []string
	finder *pathfind.Finder
}

// Archive is the result of a load.
type Archive struct {
	Panels []*model.Panel
	// TZ is nil when the archive has no default time zone.
	TZ    *time.Location
	Paths []string
	// Extra holds the top-level keys other than tz, paths and data.
	Extra map[string]any
}

// NewLoader validates cfg and returns a Loader.
func NewLoader(cfg LoaderConfig) (*Loader, error) {
	if cfg.Warnings < WarnEmit || cfg.Warnings > WarnError {
		return nil, fmt.Errorf("invalid warning policy %d", cfg.Warnings)
	}
	if cfg.BaseDir != "" {
		abs, err := filepath.Abs(cfg.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("resolving base directory %s: %w", cfg.BaseDir, err)
		}
		cfg.BaseDir = abs
	}
	l := &Loader{cfg: cfg, inf: cfg.Inferrer, codecs: cfg.Codecs}
	if l.inf == nil {
		reg := cfg.Registry
		if reg == nil {
			reg = filetypes.NewRegistry()
		}
		l.inf = filetypes.NewInference(reg)
	}
	if l.codecs == nil {
		l.codecs = DefaultCodecs()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	l.warn = &warner{
		op:      "load",
		policy:  cfg.Warnings,
		perKind: cfg.KindPolicies,
		logger:  logger,
		onWarn:  cfg.OnWarning,
	}
	return l, nil
}

// Warnings returns the warnings emitted so far.
func (l *Loader) Warnings() []*Warning {
	return l.warn.warnings
}

// Load decodes an archive from r.
func (l *Loader) Load(r io.Reader) (*Archive, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &LoadError{Msg: "invalid JSON", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("extra data after the archive object")
		}
		return nil, &LoadError{Msg: "invalid JSON", Err: err}
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, loadErrorf("JSON data should be an object, got %s", jsonType(doc))
	}
	return l.LoadDocument(m)
}

// LoadDocument loads an archive that was already decoded from JSON.
// Numbers may be float64 or json.Number.
func (l *Loader) LoadDocument(doc map[string]any) (*Archive, error) {
	f := copyFields(doc)
	var panels []any
	if v, ok := f.pop("data"); ok {
		list, isList := v.([]any)
		if !isList {
			return nil, typeError("data", "an array of objects", v)
		}
		panels = list
	}
	paths, ok, err := f.popStrings("paths")
	if err != nil {
		return nil, err
	}
	if !ok {
		paths = []string{"."}
	}
	attrs := Attrs{Paths: paths}
	if s, ok, err := f.popString("tz"); err != nil {
		return nil, err
	} else if ok {
		if attrs.TZ, err = timecalc.ParseZone(s); err != nil {
			return nil, &LoadError{Msg: "'tz'", Err: err}
		}
	}
	if l.cfg.BaseDir != "" {
		if attrs.finder, err = pathfind.New(l.cfg.BaseDir, paths); err != nil {
			return nil, &LoadError{Msg: "'paths'", Err: err}
		}
	}

	arch := &Archive{TZ: attrs.TZ, Paths: paths, Extra: model.DeepCopy(map[string]any(f)).(map[string]any)}
	defer l.warn.at(0, "", 0)
	var prev *model.Panel
	for i, v := range panels {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, &PositionError{Panel: i + 1, Err: loadErrorf("panel must be an object, got %s", jsonType(v))}
		}
		date, _ := obj["date"].(string)
		l.warn.at(i+1, date, 0)
		p, err := l.LoadPanel(obj, attrs)
		if err != nil {
			return nil, atPanel(err, i+1, obj)
		}
		if l.cfg.CheckPanelOrder && prev != nil {
			if err := l.checkPanelOrder(prev, p, i+1); err != nil {
				return nil, err
			}
		}
		if l.cfg.CheckEntryOrder {
			if err := l.checkEntryOrder(p, i+1); err != nil {
				return nil, err
			}
		}
		arch.Panels = append(arch.Panels, p)
		prev = p
	}
	return arch, nil
}

func atPanel(err error, index int, obj map[string]any) error {
	date, _ := obj["date"].(string)
	var pe *PositionError
	if errors.As(err, &pe) && pe.Panel == 0 {
		pe.Panel, pe.Date = index, date
		return err
	}
	return &PositionError{Panel: index, Date: date, Err: err}
}

// LoadPanel loads one panel object.
func (l *Loader) LoadPanel(obj map[string]any, attrs Attrs) (*model.Panel, error) {
	f := copyFields(obj)
	ds, ok, err := f.popString("date")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, loadErrorf("panel must provide date")
	}
	date, err := timecalc.ParseDate(ds)
	if err != nil {
		return nil, &LoadError{Msg: "'date'", Err: err}
	}
	l.warn.date = ds
	if s, ok, err := f.popString("tz"); err != nil {
		return nil, err
	} else if ok {
		if attrs.TZ, err = timecalc.ParseZone(s); err != nil {
			return nil, &LoadError{Msg: "'tz'", Err: err}
		}
	}

	p := model.NewPanel(date)
	if r, ok, err := f.popString("rating"); err != nil {
		return nil, err
	} else if ok {
		p.SetRating(r)
	}

	var entries []any
	if v, ok := f.pop("entries"); ok {
		list, isList := v.([]any)
		if !isList {
			return nil, typeError("entries", "an array of objects", v)
		}
		entries = list
	}
	if rest := f.rest(); len(rest) > 0 {
		if err := l.warn.warn(WarnUnknownKey, "ignored panel key(s): "+strings.Join(rest, ", ")); err != nil {
			return nil, err
		}
	}

	for j, v := range entries {
		eobj, ok := v.(map[string]any)
		if !ok {
			return nil, &PositionError{Entry: j + 1, Err: loadErrorf("entry must be an object, got %s", jsonType(v))}
		}
		l.warn.entry = j + 1
		e, err := l.LoadEntry(eobj, date, attrs)
		if err != nil {
			return nil, &PositionError{Entry: j + 1, Err: err}
		}
		if err := p.AddEntry(e); err != nil {
			return nil, &PositionError{Entry: j + 1, Err: &LoadError{Msg: "invalid entry", Err: err}}
		}
	}
	l.warn.entry = 0
	return p, nil
}

// LoadEntry loads one entry object for the panel on date. The entry is not
// attached to a panel.
func (l *Loader) LoadEntry(obj map[string]any, date civil.Date, attrs Attrs) (*model.Entry, error) {
	f := copyFields(obj)
	if s, ok, err := f.popString("tz"); err != nil {
		return nil, err
	} else if ok {
		if attrs.TZ, err = timecalc.ParseZone(s); err != nil {
			return nil, &LoadError{Msg: "'tz'", Err: err}
		}
	}
	t, err := l.entryTime(f, date, attrs.TZ)
	if err != nil {
		return nil, err
	}
	e, err := model.NewEntry(t)
	if err != nil {
		return nil, &LoadError{Msg: "invalid entry", Err: err}
	}
	insight, _, err := f.popBool("insight")
	if err != nil {
		return nil, err
	}
	if err := e.SetInsight(insight); err != nil {
		return nil, &LoadError{Msg: "invalid entry", Err: err}
	}

	if dv, ok := f["data"].(map[string]any); ok {
		err = l.loadBundle(f, e, dv, attrs)
	} else {
		err = l.loadPayload(f, e, attrs)
	}
	if err != nil {
		return nil, err
	}

	for _, key := range model.AttrKeys {
		var (
			s  string
			ok bool
		)
		if key == model.AttrTranscription {
			s, ok, err = f.popText(key)
		} else {
			s, ok, err = f.popString(key)
		}
		if err != nil {
			return nil, err
		}
		if ok {
			e.Attrs[key] = s
		}
	}
	if err := l.loadMeta(f, e); err != nil {
		return nil, err
	}

	if rest := f.rest(); len(rest) > 0 {
		if err := l.warn.warn(WarnUnknownKey, "ignored entry key(s): "+strings.Join(rest, ", ")); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (l *Loader) entryTime(f fields, date civil.Date, tz *time.Location) (time.Time, error) {
	_, hasDT := f["date-time"]
	_, hasT := f["time"]
	switch {
	case hasDT && hasT:
		return time.Time{}, loadErrorf("exactly one of 'date-time' and 'time' can be provided")
	case hasDT:
		s, _, err := f.popString("date-time")
		if err != nil {
			return time.Time{}, err
		}
		t, err := timecalc.ParseDateTime(s, tz)
		if err != nil {
			return time.Time{}, timeError("date-time", err)
		}
		if _, ok := f.pop("date"); ok {
			if err := l.warn.warn(WarnMootKey, "ignored entry key: date", "date-time", s); err != nil {
				return time.Time{}, err
			}
		}
		return t, nil
	case hasT:
		s, _, err := f.popString("time")
		if err != nil {
			return time.Time{}, err
		}
		clock, err := timecalc.ParseClock(s)
		if err != nil {
			return time.Time{}, &LoadError{Msg: "'time'", Err: err}
		}
		if ds, ok, err := f.popString("date"); err != nil {
			return time.Time{}, err
		} else if ok {
			if date, err = timecalc.ParseDate(ds); err != nil {
				return time.Time{}, &LoadError{Msg: "'date'", Err: err}
			}
		}
		t, err := timecalc.Combine(date, clock, tz)
		if err != nil {
			return time.Time{}, timeError("time", err)
		}
		return t, nil
	}
	return time.Time{}, loadErrorf("entry must provide time, either through the key 'time' or 'date-time'")
}

func timeError(key string, err error) error {
	if errors.Is(err, timecalc.ErrNaive) {
		return loadErrorf("time zone is not provided")
	}
	return &LoadError{Msg: "'" + key + "'", Err: err}
}

// typeFormat pops type-format, or type (alias-resolved) and format.
func (l *Loader) typeFormat(f fields) (typ, format string, hasFormat bool, err error) {
	if tf, ok, err := f.popString("type-format"); err != nil {
		return "", "", false, err
	} else if ok {
		typ, format, found := strings.Cut(tf, "-")
		if !found || typ == "" {
			return "", "", false, loadErrorf("'type-format': expected TYPE-FORMAT, got %q", tf)
		}
		return typ, format, true, nil
	}
	typ, ok, err := f.popString("type")
	if err != nil {
		return "", "", false, err
	}
	if ok {
		if typ == "" {
			return "", "", false, loadErrorf("'type': must not be empty")
		}
		typ = l.inf.AliasCheck(typ)
	}
	format, hasFormat, err = f.popString("format")
	if err != nil {
		return "", "", false, err
	}
	return typ, format, hasFormat, nil
}

func (l *Loader) loadPayload(f fields, e *model.Entry, attrs Attrs) error {
	_, hasData := f["data"]
	_, hasInput := f["input"]
	if hasData && hasInput {
		return loadErrorf("only one of 'data' and 'input' can be specified")
	}
	if !hasData && !hasInput {
		return loadErrorf("at least one of 'data' and 'input' should be specified")
	}
	typ, format, hasFormat, err := l.typeFormat(f)
	if err != nil {
		return err
	}
	enc, _, err := f.popString("encoding")
	if err != nil {
		return err
	}

	if hasInput {
		path, _, err := f.popString("input")
		if err != nil {
			return err
		}
		src, err := l.resolveInput(path, attrs)
		if err != nil {
			return err
		}
		typ, enc = resolveTypeEncoding(l.inf, modeInput, path, typ, enc)
		e.SetSource(src)
	} else {
		codecName, hasCodec, err := f.popString("data-encoding")
		if err != nil {
			return err
		}
		text, _, err := f.popText("data")
		if err != nil {
			return err
		}
		if hasCodec {
			raw, err := l.decode(codecName, text)
			if err != nil {
				return err
			}
			typ, enc = resolveTypeEncoding(l.inf, modeBinary, "", typ, enc)
			e.SetRaw(raw)
		} else {
			if enc != "" && !textenc.IsUTF8(enc) {
				if err := l.warn.warn(WarnEncoding, fmt.Sprintf("'data': encoding %q treated as 'utf-8'", enc)); err != nil {
					return err
				}
			}
			typ, enc = resolveTypeEncoding(l.inf, modeText, "", typ, "")
			e.SetRaw([]byte(text))
		}
	}
	e.SetType(typ)
	if hasFormat {
		e.SetFormat(format)
	}
	e.SetEncoding(enc)
	return nil
}

func (l *Loader) decode(codecName, text string) ([]byte, error) {
	codec, ok := l.codecs[codecName]
	if !ok || codec.Decode == nil {
		return nil, loadErrorf("invalid data encoding: %s", codecName)
	}
	raw, err := codec.Decode(text)
	if err != nil {
		return nil, &LoadError{Msg: "'data': cannot decode " + codecName, Err: err}
	}
	return raw, nil
}

func (l *Loader) resolveInput(path string, attrs Attrs) (string, error) {
	if attrs.finder == nil {
		return "", loadErrorf("base_dir must be set when there are input paths")
	}
	hits := attrs.finder.Find(path)
	if len(hits) == 0 {
		return "", loadErrorf("cannot find path %q (using base_dir = %q)", path, attrs.finder.BaseDir)
	}
	if len(hits) > 1 && l.cfg.WarnAmbiguousPaths {
		msg := fmt.Sprintf("found more than one path for %q; using the first path found (%s)", path, hits[0])
		if err := l.warn.warn(WarnAmbiguousPath, msg, "paths", hits); err != nil {
			return "", err
		}
	}
	return hits[0], nil
}

// loadBundle loads an entry whose data is an object describing an archive
// with a main text file.
func (l *Loader) loadBundle(f fields, e *model.Entry, obj map[string]any, attrs Attrs) error {
	for _, key := range []string{"input", "type", "type-format", "encoding", "data-encoding"} {
		if _, ok := f[key]; ok {
			return loadErrorf("'%s' is not allowed when 'data' describes a bundle", key)
		}
	}
	f.pop("data")
	format, hasFormat, err := f.popString("format")
	if err != nil {
		return err
	}

	d := copyFields(obj)
	mainFile, ok, err := d.popString("main-file")
	if err != nil {
		return err
	}
	if !ok || mainFile == "" {
		return loadErrorf("bundle data must provide 'main-file'")
	}
	_, hasInput := d["input"]
	_, hasRaw := d["raw"]
	switch {
	case hasInput && hasRaw:
		return loadErrorf("only one of 'input' and 'raw' can be specified in bundle data")
	case hasInput:
		path, _, err := d.popString("input")
		if err != nil {
			return err
		}
		src, err := l.resolveInput(path, attrs)
		if err != nil {
			return err
		}
		if !hasFormat {
			format = l.inf.InferTypeFromPath(path)
		}
		e.SetSource(src)
	case hasRaw:
		codecName, ok, err := d.popString("data-encoding")
		if err != nil {
			return err
		}
		if !ok {
			codecName = DefaultEncoding
		}
		text, _, err := d.popText("raw")
		if err != nil {
			return err
		}
		raw, err := l.decode(codecName, text)
		if err != nil {
			return err
		}
		e.SetRaw(raw)
	default:
		return loadErrorf("bundle data must provide 'input' or 'raw'")
	}
	if format == "" {
		return loadErrorf("cannot infer the archive format of the bundle; set 'format'")
	}
	if !model.SupportedBundle(format) {
		return loadErrorf("unsupported bundle format %q", format)
	}

	typ, mformat, hasMFormat, err := l.typeFormat(d)
	if err != nil {
		return err
	}
	enc, _, err := d.popString("encoding")
	if err != nil {
		return err
	}
	typ, enc = resolveTypeEncoding(l.inf, modeMainFile, mainFile, typ, enc)
	if enc == model.Binary {
		return loadErrorf("bundle main file %q must be text", mainFile)
	}
	if rest := d.rest(); len(rest) > 0 {
		if err := l.warn.warn(WarnUnknownKey, "ignored bundle key(s): "+strings.Join(rest, ", ")); err != nil {
			return err
		}
	}

	e.SetType(format)
	e.ClearFormat()
	e.SetEncoding(model.Binary)
	e.Bundle = &model.Bundle{MainFile: mainFile, Type: typ, Format: mformat, HasFmt: hasMFormat, Encoding: enc}
	return nil
}

func (l *Loader) loadMeta(f fields, e *model.Entry) error {
	obj, ok, err := f.popObject("meta")
	if err != nil || !ok {
		return err
	}
	m := copyFields(obj)
	meta := &model.Metadata{}
	loc := e.Time().Location()
	for _, slot := range []struct {
		key string
		dst **time.Time
	}{
		{"created", &meta.Created},
		{"modified", &meta.Modified},
		{"posted", &meta.Posted},
	} {
		s, ok, err := m.popString(slot.key)
		if err != nil {
			return &LoadError{Msg: "'meta'", Err: err}
		}
		if !ok {
			continue
		}
		t, err := timecalc.ParseDateTime(s, loc)
		if err != nil {
			return &LoadError{Msg: "'meta': '" + slot.key + "'", Err: err}
		}
		*slot.dst = &t
	}
	if len(m) > 0 {
		meta.Extra = model.DeepCopy(map[string]any(m)).(map[string]any)
	}
	e.Meta = meta
	return nil
}

func (l *Loader) checkPanelOrder(prev, cur *model.Panel, index int) error {
	switch {
	case prev.Date().After(cur.Date()):
		return l.warn.warn(WarnPanelOrder, fmt.Sprintf("panel #%d (%s) is after panel #%d (%s)",
			index-1, prev.Date(), index, cur.Date()))
	case prev.Date() == cur.Date():
		return l.warn.warn(WarnDuplicateDate, fmt.Sprintf("panel #%d has the same date as #%d (%s)",
			index-1, index, cur.Date()))
	}
	return nil
}

// checkEntryOrder expects main entries first, then insights, each group in
// chronological order.
func (l *Loader) checkEntryOrder(p *model.Panel, pindex int) error {
	kind := func(insight bool) string {
		if insight {
			return "an insight entry"
		}
		return "a main entry"
	}
	seenInsight := false
	lastMain, lastInsight := 0, 0
	for i, e := range p.Entries() {
		index := i + 1
		if seenInsight && !e.Insight() {
			msg := fmt.Sprintf("expected entry %d to be %s, got %s (in panel %d on %s)",
				index, kind(true), kind(false), pindex, p.Date())
			if err := l.warn.warn(WarnEntryOrder, msg); err != nil {
				return err
			}
		}
		last, group := &lastMain, "main"
		if e.Insight() {
			seenInsight = true
			last, group = &lastInsight, "insight"
		}
		if *last > 0 && p.Entry(*last-1).Time().After(e.Time()) {
			msg := fmt.Sprintf("inconsistent order in %s entries in panel %d on %s (entry %d precedes entry %d in time)",
				group, pindex, p.Date(), index, *last)
			if err := l.warn.warn(WarnEntryOrder, msg); err != nil {
				return err
			}
		}
		*last = index
	}
	return nil
}
