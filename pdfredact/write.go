package pdfredact

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/reader"

	"github.com/tsawler/veil/severity"
)

// WriteOptions configures redacted output.
type WriteOptions struct {
	// DrawLabels draws the entity type and confidence over each box.
	DrawLabels bool
	// LabelPrefix is prepended to every entity label.
	LabelPrefix string
	// AttachOriginal embeds the source PDF in the output as a named
	// attachment.
	AttachOriginal bool
	// SeverityOverrides are merged over the default entity severity map.
	SeverityOverrides map[string]severity.Severity
	// ColorOverrides are merged over the default severity color map.
	ColorOverrides map[string]severity.Color
}

// pageRecord is one page leaf found by walking the page tree: its object
// reference, its raw dictionary, and the nearest inherited /Resources
// value (raw, possibly a reference) when the page has none of its own.
type pageRecord struct {
	ref                core.IndirectRef
	dict               core.Dict
	inheritedResources core.Object
}

// Write appends an incremental update to the source PDF that composites
// the given redaction boxes over each page, and saves the result at
// dstPath. The original file's bytes are preserved unmodified as the
// prefix of the output. perPage must have exactly one entry per page.
//
// The output is staged in a temporary file beside dstPath and renamed
// into place, so a failed write never leaves a partial destination file.
func Write(srcPath, dstPath string, perPage [][]EntityBox, opts WriteOptions) error {
	srcBytes, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("reading source PDF: %w", err)
	}

	r, err := reader.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening source PDF: %w", err)
	}
	defer r.Close()

	rootRef, pageRecs, err := collectPages(r)
	if err != nil {
		return fmt.Errorf("walking page tree: %w", err)
	}

	if len(perPage) != len(pageRecs) {
		return fmt.Errorf("page count mismatch: %d box lists for %d pages", len(perPage), len(pageRecs))
	}

	sevMap := severity.MergeSeverities(severity.DefaultSeverityMap(), opts.SeverityOverrides)
	colMap := severity.MergeColors(severity.DefaultColorMap(), opts.ColorOverrides)

	nextNum := r.NumObjects()
	if nextNum <= 0 {
		nextNum = maxObjectNumber(r) + 1
	}
	alloc := func() int {
		n := nextNum
		nextNum++
		return n
	}

	newObjs := make(map[int]core.Object)

	// The Helvetica font object is shared by every page that needs it.
	var fontRef core.IndirectRef
	font := func() core.IndirectRef {
		if fontRef.Number == 0 {
			fontRef = core.IndirectRef{Number: alloc()}
			newObjs[fontRef.Number] = core.Dict{
				"Type":     core.Name("Font"),
				"Subtype":  core.Name("Type1"),
				"BaseFont": core.Name("Helvetica"),
			}
		}
		return fontRef
	}

	for i, rec := range pageRecs {
		if len(perPage[i]) == 0 {
			continue
		}

		ops := BuildPageOps(perPage[i], opts.DrawLabels, opts.LabelPrefix, sevMap, colMap)
		if len(ops) == 0 {
			continue
		}

		streamRef := core.IndirectRef{Number: alloc()}
		newObjs[streamRef.Number] = &core.Stream{
			Dict: core.Dict{"Length": core.Int(len(ops))},
			Data: ops,
		}

		newDict := copyDict(rec.dict)

		contents, err := appendContents(rec.dict.Get("Contents"), streamRef, alloc, newObjs)
		if err != nil {
			return fmt.Errorf("page %d contents: %w", i, err)
		}
		newDict.Set("Contents", contents)

		if opts.DrawLabels {
			res, err := resourcesWithFont(r, rec, font)
			if err != nil {
				return fmt.Errorf("page %d resources: %w", i, err)
			}
			newDict.Set("Resources", res)
		}

		newObjs[rec.ref.Number] = newDict
	}

	if opts.AttachOriginal {
		if err := attachOriginal(r, rootRef, srcPath, srcBytes, alloc, newObjs); err != nil {
			return fmt.Errorf("attaching original: %w", err)
		}
	}

	// Nothing to redact and nothing to attach: the output is a plain
	// copy of the source.
	if len(newObjs) == 0 {
		return atomicWrite(dstPath, srcBytes)
	}

	prevXRef, err := lastStartXRef(srcBytes)
	if err != nil {
		return err
	}

	out, err := appendUpdate(srcBytes, newObjs, nextNum, rootRef, r.Trailer(), prevXRef)
	if err != nil {
		return err
	}

	return atomicWrite(dstPath, out)
}

// collectPages resolves the catalog and flattens the page tree, keeping
// each leaf's object reference so the page can be rewritten in place.
func collectPages(r *reader.Reader) (core.IndirectRef, []pageRecord, error) {
	rootObj := r.Trailer().Get("Root")
	rootRef, ok := rootObj.(core.IndirectRef)
	if !ok {
		return core.IndirectRef{}, nil, fmt.Errorf("trailer /Root is %T, want reference", rootObj)
	}

	catalog, err := r.GetCatalog()
	if err != nil {
		return core.IndirectRef{}, nil, err
	}

	pagesRef, ok := catalog.Get("Pages").(core.IndirectRef)
	if !ok {
		return core.IndirectRef{}, nil, fmt.Errorf("catalog /Pages is not a reference")
	}

	var pages []pageRecord
	if err := walkPageNode(r, pagesRef, nil, &pages); err != nil {
		return core.IndirectRef{}, nil, err
	}
	return rootRef, pages, nil
}

// walkPageNode recurses through Pages nodes, carrying the nearest raw
// /Resources value down to leaves that lack their own.
func walkPageNode(r *reader.Reader, ref core.IndirectRef, inheritedResources core.Object, pages *[]pageRecord) error {
	obj, err := r.ResolveReference(ref)
	if err != nil {
		return fmt.Errorf("resolving page node %d: %w", ref.Number, err)
	}
	node, ok := obj.(core.Dict)
	if !ok {
		return fmt.Errorf("page node %d is %T, want dictionary", ref.Number, obj)
	}

	if res := node.Get("Resources"); res != nil {
		inheritedResources = res
	}

	typeName, _ := node.GetName("Type")
	switch string(typeName) {
	case "Pages":
		kidsObj, err := r.Resolve(node.Get("Kids"))
		if err != nil {
			return fmt.Errorf("resolving /Kids of node %d: %w", ref.Number, err)
		}
		kids, ok := kidsObj.(core.Array)
		if !ok {
			return fmt.Errorf("node %d /Kids is %T, want array", ref.Number, kidsObj)
		}
		for _, kid := range kids {
			kidRef, ok := kid.(core.IndirectRef)
			if !ok {
				return fmt.Errorf("node %d has a direct kid object", ref.Number)
			}
			if err := walkPageNode(r, kidRef, inheritedResources, pages); err != nil {
				return err
			}
		}

	case "Page":
		*pages = append(*pages, pageRecord{
			ref:                ref,
			dict:               node,
			inheritedResources: inheritedResources,
		})

	default:
		return fmt.Errorf("unexpected page node type %q in object %d", typeName, ref.Number)
	}
	return nil
}

// appendContents returns the page's new /Contents value with the
// redaction stream appended after every existing stream. A direct
// (non-referenced) stream is promoted to its own object first.
func appendContents(existing core.Object, streamRef core.IndirectRef, alloc func() int, newObjs map[int]core.Object) (core.Object, error) {
	switch v := existing.(type) {
	case nil:
		return core.Array{streamRef}, nil
	case core.IndirectRef:
		return core.Array{v, streamRef}, nil
	case core.Array:
		out := make(core.Array, 0, len(v)+1)
		out = append(out, v...)
		out = append(out, streamRef)
		return out, nil
	case *core.Stream:
		promoted := core.IndirectRef{Number: alloc()}
		newObjs[promoted.Number] = v
		return core.Array{promoted, streamRef}, nil
	default:
		return nil, fmt.Errorf("unsupported /Contents type %T", existing)
	}
}

// resourcesWithFont materializes the page's resources (own or inherited)
// as a direct dictionary carrying the label font under /Font /F1.
// Registration is idempotent: an existing /F1 entry is left alone.
func resourcesWithFont(r *reader.Reader, rec pageRecord, font func() core.IndirectRef) (core.Dict, error) {
	raw := rec.dict.Get("Resources")
	if raw == nil {
		raw = rec.inheritedResources
	}

	res := core.Dict{}
	if raw != nil {
		resolved, err := r.Resolve(raw)
		if err != nil {
			return nil, fmt.Errorf("resolving resources: %w", err)
		}
		if d, ok := resolved.(core.Dict); ok {
			res = copyDict(d)
		}
	}

	fonts := core.Dict{}
	if fObj := res.Get("Font"); fObj != nil {
		resolved, err := r.Resolve(fObj)
		if err != nil {
			return nil, fmt.Errorf("resolving font dict: %w", err)
		}
		if d, ok := resolved.(core.Dict); ok {
			fonts = copyDict(d)
		}
	}

	if !fonts.Has("F1") {
		fonts.Set("F1", font())
	}
	res.Set("Font", fonts)
	return res, nil
}

// attachOriginal embeds the source file as a named attachment: an
// embedded-file stream, a filespec, and a /Names /EmbeddedFiles entry in
// a rewritten catalog.
func attachOriginal(r *reader.Reader, rootRef core.IndirectRef, srcPath string, srcBytes []byte, alloc func() int, newObjs map[int]core.Object) error {
	name := filepath.Base(srcPath)

	embRef := core.IndirectRef{Number: alloc()}
	newObjs[embRef.Number] = &core.Stream{
		Dict: core.Dict{
			"Type":   core.Name("EmbeddedFile"),
			"Length": core.Int(len(srcBytes)),
			"Params": core.Dict{"Size": core.Int(len(srcBytes))},
		},
		Data: srcBytes,
	}

	fsRef := core.IndirectRef{Number: alloc()}
	newObjs[fsRef.Number] = core.Dict{
		"Type": core.Name("Filespec"),
		"F":    core.String(name),
		"UF":   core.String(name),
		"EF":   core.Dict{"F": embRef},
	}

	catalog, err := r.GetCatalog()
	if err != nil {
		return err
	}
	newCat := copyDict(catalog)

	names := core.Dict{}
	if nObj := newCat.Get("Names"); nObj != nil {
		resolved, err := r.Resolve(nObj)
		if err != nil {
			return fmt.Errorf("resolving /Names: %w", err)
		}
		if d, ok := resolved.(core.Dict); ok {
			names = copyDict(d)
		}
	}

	pairs := core.Array{}
	if efObj := names.Get("EmbeddedFiles"); efObj != nil {
		resolved, err := r.Resolve(efObj)
		if err != nil {
			return fmt.Errorf("resolving /EmbeddedFiles: %w", err)
		}
		if d, ok := resolved.(core.Dict); ok {
			if existing, ok := d.GetArray("Names"); ok {
				pairs = append(pairs, existing...)
			}
		}
	}
	pairs = append(pairs, core.String(name), fsRef)

	names.Set("EmbeddedFiles", core.Dict{"Names": pairs})
	newCat.Set("Names", names)
	newObjs[rootRef.Number] = newCat
	return nil
}

// startXRefRe matches a startxref keyword and its offset.
var startXRefRe = regexp.MustCompile(`startxref\s+(\d+)`)

// lastStartXRef finds the offset recorded by the final startxref in the
// file, which becomes the new trailer's /Prev.
func lastStartXRef(data []byte) (int64, error) {
	matches := startXRefRe.FindAllSubmatch(data, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("source PDF has no startxref")
	}
	return strconv.ParseInt(string(matches[len(matches)-1][1]), 10, 64)
}

// maxObjectNumber scans the xref table for the highest object number.
func maxObjectNumber(r *reader.Reader) int {
	max := 0
	for num := range r.XRefTable().Entries {
		if num > max {
			max = num
		}
	}
	return max
}

// appendUpdate serializes the new and rewritten objects after the source
// bytes, followed by a classic xref section and trailer.
func appendUpdate(srcBytes []byte, newObjs map[int]core.Object, sizeAfter int, rootRef core.IndirectRef, oldTrailer core.Dict, prevXRef int64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(srcBytes)
	if len(srcBytes) > 0 && srcBytes[len(srcBytes)-1] != '\n' {
		buf.WriteByte('\n')
	}

	nums := make([]int, 0, len(newObjs))
	for n := range newObjs {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	offsets := make(map[int]int64, len(nums))
	for _, n := range nums {
		offsets[n] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n", n)
		if err := serializeObject(&buf, newObjs[n]); err != nil {
			return nil, fmt.Errorf("serializing object %d: %w", n, err)
		}
		buf.WriteString("\nendobj\n")
	}

	xrefOffset := buf.Len()
	buf.WriteString("xref\n")
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		fmt.Fprintf(&buf, "%d %d\n", nums[i], j-i+1)
		for k := i; k <= j; k++ {
			fmt.Fprintf(&buf, "%010d %05d n \n", offsets[nums[k]], 0)
		}
		i = j + 1
	}

	trailer := core.Dict{
		"Size": core.Int(sizeAfter),
		"Root": rootRef,
		"Prev": core.Int(prevXRef),
	}
	if info := oldTrailer.Get("Info"); info != nil {
		trailer.Set("Info", info)
	}
	if id := oldTrailer.Get("ID"); id != nil {
		trailer.Set("ID", id)
	}

	buf.WriteString("trailer\n")
	if err := serializeObject(&buf, trailer); err != nil {
		return nil, fmt.Errorf("serializing trailer: %w", err)
	}
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	return buf.Bytes(), nil
}

// copyDict makes a shallow copy of a dictionary so the original parsed
// object (and the reader's cache) stays untouched.
func copyDict(d core.Dict) core.Dict {
	out := make(core.Dict, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// atomicWrite stages data in a temp file in the destination directory
// and renames it into place.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".veil-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing output: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting output permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("moving output into place: %w", err)
	}
	return nil
}
