package schema

import (
	"fmt"
	"go/types"
	"path/filepath"

	"golang.org/x/tools/go/packages"
)

// LoadMode specifies what information to load from packages.
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedImports

// Loader loads Go packages and builds a schema graph.
type Loader struct {
	graph     *TypeGraph
	typeCache map[types.Type]*TypeInfo // Cache to handle recursive types
}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{
		graph:     NewTypeGraph(),
		typeCache: make(map[types.Type]*TypeInfo),
	}
}

// LoadPackages loads the specified packages and builds the schema graph.
// Patterns are standard Go package patterns (e.g., "./store", "projection-generator/store").
func (l *Loader) LoadPackages(patterns ...string) (*TypeGraph, error) {
	cfg := &packages.Config{
		Mode: LoadMode,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}

	var errs []error
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, e)
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors: %v", errs)
	}

	for _, pkg := range pkgs {
		if err := l.processPackage(pkg); err != nil {
			return nil, fmt.Errorf("failed to process package %s: %w", pkg.PkgPath, err)
		}
	}

	return l.graph, nil
}

// Graph returns the current schema graph.
func (l *Loader) Graph() *TypeGraph {
	return l.graph
}

// processPackage extracts types from a loaded package.
func (l *Loader) processPackage(pkg *packages.Package) error {
	pkgInfo := &PackageInfo{
		Path: pkg.PkgPath,
		Name: pkg.Name,
	}

	if len(pkg.GoFiles) > 0 {
		pkgInfo.Dir = filepath.Dir(pkg.GoFiles[0])
	}

	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)

		typeName, ok := obj.(*types.TypeName)
		if !ok {
			continue
		}

		if !typeName.Exported() {
			continue
		}

		typeID := TypeID{
			PkgPath: pkg.PkgPath,
			Name:    name,
		}

		typeInfo := l.analyzeType(typeName.Type())
		typeInfo.ID = typeID

		l.graph.Types[typeID] = typeInfo
		pkgInfo.Types = append(pkgInfo.Types, typeID)
	}

	l.graph.Packages[pkg.PkgPath] = pkgInfo

	return nil
}

// analyzeType recursively analyzes a go/types.Type and returns a TypeInfo.
func (l *Loader) analyzeType(t types.Type) *TypeInfo {
	// Check cache to handle recursive types
	if cached, ok := l.typeCache[t]; ok {
		return cached
	}

	info := &TypeInfo{
		GoType:           t,
		AnnotationsKnown: true,
	}

	// Pre-cache so recursive source types do not loop. Nested Structures
	// stay acyclic regardless: they derive from projection syntax, not
	// from this (possibly cyclic) type graph.
	l.typeCache[t] = info

	switch tt := t.(type) {
	case *types.Named:
		l.analyzeNamedType(tt, info)

	case *types.Basic:
		info.Kind = TypeKindBasic

	case *types.Pointer:
		info.Kind = TypeKindPointer
		info.ElemType = l.analyzeType(tt.Elem())

	case *types.Slice:
		info.Kind = TypeKindSlice
		info.ElemType = l.analyzeType(tt.Elem())

	case *types.Struct:
		info.Kind = TypeKindStruct
		l.analyzeStructFields(tt, info)

	default:
		// Maps, interfaces, channels, etc. are opaque to the pipeline.
		info.Kind = TypeKindUnknown
		info.AnnotationsKnown = false
	}

	return info
}

// analyzeNamedType analyzes a named type.
func (l *Loader) analyzeNamedType(named *types.Named, info *TypeInfo) {
	obj := named.Obj()
	info.ID = TypeID{
		PkgPath: obj.Pkg().Path(),
		Name:    obj.Name(),
	}

	underlying := named.Underlying()

	switch ut := underlying.(type) {
	case *types.Struct:
		info.Kind = TypeKindStruct
		l.analyzeStructFields(ut, info)

	case *types.Basic:
		info.Kind = TypeKindAlias
		info.Underlying = l.analyzeType(ut)

	case *types.Slice:
		info.Kind = TypeKindSlice
		info.ElemType = l.analyzeType(ut.Elem())

	default:
		if l.isExternalPackage(obj.Pkg().Path()) {
			info.Kind = TypeKindExternal
		} else {
			info.Kind = TypeKindAlias
			info.Underlying = l.analyzeType(ut)
		}
	}
}

// isExternalPackage returns true if the package is not in our analyzed set.
func (l *Loader) isExternalPackage(pkgPath string) bool {
	_, ok := l.graph.Packages[pkgPath]
	return !ok
}

// analyzeStructFields extracts members from a struct type.
// A pointer-typed member is the declared-nullability annotation in Go:
// the member may be absent, and the projection must short-circuit.
func (l *Loader) analyzeStructFields(st *types.Struct, info *TypeInfo) {
	for i := 0; i < st.NumFields(); i++ {
		field := st.Field(i)

		if !field.Exported() {
			continue
		}

		ft := l.analyzeType(field.Type())

		fieldInfo := FieldInfo{
			Name:     field.Name(),
			Type:     ft,
			Nullable: ft.Kind == TypeKindPointer,
			Embedded: field.Embedded(),
			Index:    i,
		}

		info.Fields = append(info.Fields, fieldInfo)
	}
}

// GetStruct returns the TypeInfo for a named struct by package path and name.
func (l *Loader) GetStruct(pkgPath, typeName string) (*TypeInfo, error) {
	id := TypeID{PkgPath: pkgPath, Name: typeName}

	info := l.graph.GetType(id)
	if info == nil {
		return nil, fmt.Errorf("type %s not found", id)
	}

	if info.Kind != TypeKindStruct {
		return nil, fmt.Errorf("type %s is not a struct (kind: %s)", id, info.Kind)
	}

	return info, nil
}
