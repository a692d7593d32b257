package compiler

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/runtime"
	"go.trai.ch/zerr"
)

// imageMagic prefixes every encoded module. The trailing byte is the
// format version.
const imageMagic = "DSLM\x01"

const headerSize = len(imageMagic) + 8

type image struct {
	Name       string
	Entry      string
	References []string
	Classes    []imageClass
}

type imageClass struct {
	Def     *ast.ClassDefinition
	Imports []string
}

func init() {
	for _, n := range []any{
		&ast.Method{}, &ast.Constructor{}, &ast.Field{}, &ast.Property{},
		&ast.ExpressionStatement{}, &ast.MacroStatement{}, &ast.ReturnStatement{},
		&ast.IfStatement{}, &ast.ForStatement{},
		&ast.ReferenceExpression{}, &ast.MemberReferenceExpression{},
		&ast.MethodInvocationExpression{}, &ast.StringLiteral{}, &ast.IntegerLiteral{},
		&ast.FloatLiteral{}, &ast.BoolLiteral{}, &ast.NullLiteral{}, &ast.SelfLiteral{},
		&ast.SuperLiteral{}, &ast.ListLiteral{}, &ast.IndexExpression{},
		&ast.BinaryExpression{}, &ast.UnaryExpression{}, &ast.BlockExpression{},
	} {
		gob.Register(n)
	}
}

// EncodeModule serializes a linked module. The image carries class
// definitions and library names; DecodeModule links it again.
func EncodeModule(m *runtime.Module) ([]byte, error) {
	img := image{Name: m.Name, Entry: m.Entry}
	for _, lib := range m.References() {
		img.References = append(img.References, lib.Name)
	}
	for _, c := range m.Classes() {
		img.Classes = append(img.Classes, imageClass{Def: c.Def, Imports: c.Imports})
	}

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(&img); err != nil {
		return nil, zerr.Wrap(err, "failed to encode module")
	}

	out := make([]byte, headerSize, headerSize+payload.Len())
	copy(out, imageMagic)
	binary.BigEndian.PutUint64(out[len(imageMagic):], xxhash.Sum64(payload.Bytes()))
	return append(out, payload.Bytes()...), nil
}

// DecodeModule links an image produced by EncodeModule against libs.
// Integrity failures wrap domain.ErrCorruptModule.
func DecodeModule(data []byte, libs []*runtime.Library) (*runtime.Module, error) {
	if len(data) < headerSize || string(data[:len(imageMagic)]) != imageMagic {
		return nil, zerr.Wrap(domain.ErrCorruptModule, "bad header")
	}
	payload := data[headerSize:]
	if binary.BigEndian.Uint64(data[len(imageMagic):headerSize]) != xxhash.Sum64(payload) {
		return nil, zerr.Wrap(domain.ErrCorruptModule, "checksum mismatch")
	}

	var img image
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&img); err != nil {
		return nil, zerr.Wrap(domain.ErrCorruptModule, err.Error())
	}

	refs := make([]*runtime.Library, 0, len(img.References))
	for _, name := range img.References {
		lib := findLibrary(libs, name)
		if lib == nil {
			return nil, zerr.With(zerr.Wrap(ErrMissingReference, name), "library", name)
		}
		refs = append(refs, lib)
	}

	mod := runtime.NewModule(img.Name, refs)
	mod.Entry = img.Entry
	for _, c := range img.Classes {
		if _, err := mod.Define(c.Def, c.Imports); err != nil {
			return nil, zerr.Wrap(err, "failed to link module")
		}
	}
	return mod, nil
}

func findLibrary(libs []*runtime.Library, name string) *runtime.Library {
	for _, lib := range libs {
		if lib.Name == name {
			return lib
		}
	}
	return nil
}
