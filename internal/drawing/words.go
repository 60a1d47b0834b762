package drawing

var defaultWords = []string{
	"apple", "banana", "bicycle", "bridge", "butterfly", "cactus", "camera",
	"candle", "castle", "cat", "cloud", "dragon", "elephant", "fish",
	"flower", "guitar", "hamburger", "helicopter", "house", "ice cream",
	"island", "kite", "ladder", "lighthouse", "moon", "mountain", "octopus",
	"penguin", "pizza", "rainbow", "robot", "rocket", "sailboat", "snowman",
	"spider", "sun", "tree", "umbrella", "volcano", "whale",
}

// Words returns a copy of the built-in word list.
func Words() []string {
	return append([]string(nil), defaultWords...)
}
