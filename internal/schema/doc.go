// Package schema is the type-schema oracle for the projection pipeline.
//
// It uses golang.org/x/tools/go/packages with go/types to build a
// canonical in-memory model of source entity types: members with
// declared nullability, and collection capability (element type,
// materialization). Synthetic types (grouped sequences, test fixtures)
// are built through the same model via the Builder.
//
// Key types:
//   - TypeID: package import path + type name
//   - TypeInfo: describes kind (struct/basic/pointer/slice/group/...)
//   - FieldInfo: describes member name, type, and declared nullability
package schema
