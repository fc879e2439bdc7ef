// Package formats provides readers and writers for mesh interchange formats.
package formats

// Note: OBJ geometry is implemented in obj.go
// Note: MTL material libraries are implemented in mtl.go
