package interfaces

// Chunk 按 size 切分切片（Steam 批量接口每次最多 100 个id）
func Chunk[T any](slice []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	res := make([][]T, 0, (len(slice)+size-1)/size)
	for i := 0; i < len(slice); i += size {
		res = append(res, slice[i:min(i+size, len(slice))])
	}
	return res
}
