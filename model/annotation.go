package model

// AnnotationKind distinguishes the annotation payloads.
type AnnotationKind uint8

const (
	MapAnnotationKind AnnotationKind = iota
	FileAnnotationKind
)

func (k AnnotationKind) String() string {
	switch k {
	case MapAnnotationKind:
		return "MapAnnotation"
	case FileAnnotationKind:
		return "FileAnnotation"
	default:
		return "UnknownAnnotation"
	}
}

// NamedValue is one key/value pair of a map annotation.
type NamedValue struct {
	Name  string
	Value string
}

// Annotation is a key/value list or a file attached to entities via links.
type Annotation struct {
	ID          int64
	Kind        AnnotationKind
	Ns          string
	Description string
	MapValue    []NamedValue

	// File is set for file annotations.
	File *OriginalFile

	Details Details
}

// Value returns the value for the first pair with the given name.
func (a *Annotation) Value(name string) (string, bool) {
	for _, nv := range a.MapValue {
		if nv.Name == name {
			return nv.Value, true
		}
	}
	return "", false
}

// AnnotationLink attaches an annotation to a parent entity.  If the child has not been
// saved, saving the link saves it.
type AnnotationLink struct {
	ID      int64
	Parent  Ref
	Child   *Annotation
	Details Details
}

// LinkClass returns the class name of an annotation link for a parent class, e.g.,
// "DatasetAnnotationLink".
func LinkClass(parent Class) string {
	return string(parent) + "AnnotationLink"
}
