//go:build !unix

package pipeline

func interrupted(error) bool {
	return false
}
