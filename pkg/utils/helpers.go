package utils

//Clamp01 limits given fractional coordinate to [0,1]
func Clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

//ScaleCoord maps a fractional coordinate onto a pixel axis of given length, truncating toward zero
func ScaleCoord(v float32, length int) int {
	return int(v * float32(length))
}
