package depot

import "reflect"

type factory struct{}

var Factory factory

func (f factory) NewStorage(opts ...StorageOption) Storage {
	return newStorage(opts...)
}

func (f factory) NewQuery() Query {
	return newQuery()
}

func (f factory) NewCursor(query QueryNode, storage Storage) *Cursor {
	return newCursor(query, storage)
}

// NewSignatureQuery builds the required/excluded match systems use. The two
// sets must be disjoint.
func (f factory) NewSignatureQuery(required, excluded []Component) (QueryNode, error) {
	return newSignatureQuery(required, excluded)
}

// FactoryNewComponent registers T under the given stable tag and returns its
// typed access handle. Registration is idempotent by Go type: calling it
// again for the same T returns a handle to the same ComponentTypeID.
// Registration must happen before any storage using T is populated or any
// file referencing the tag is loaded.
func FactoryNewComponent[T any](tag string) AccessibleComponent[T] {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	meta := mainRegistry.register(typ, tag, newColumn[T])
	return AccessibleComponent[T]{Component: meta}
}
