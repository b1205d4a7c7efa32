package copyutil

import (
	"github.com/fcg/usuarios/core"
	"github.com/jinzhu/copier"
)

// Copy fields with matching names, failures are logged and ignored.
func Copy(from any, toPtr any) {
	if err := copier.Copy(toPtr, from); err != nil {
		core.Errorf("Failed to copy value, %v", core.WrapErr(err))
	}
}

func CopyNew[V any](from any) V {
	var v V
	Copy(from, &v)
	return v
}

func CopySlice[V any, T any](from []T) []V {
	v := make([]V, 0, len(from))
	for i := range from {
		v = append(v, CopyNew[V](&from[i]))
	}
	return v
}
