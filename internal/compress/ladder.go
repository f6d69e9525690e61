package compress

const mib = 1 << 20

// Size thresholds of the escalation ladder.
const (
	// Threshold is the size above which callers should compress before upload.
	Threshold int64 = 2 * mib
	// SecondPassThreshold triggers a harsher second pass when the first output is still larger.
	SecondPassThreshold int64 = 3 * mib
)

// SecondPass is applied when the first pass output exceeds SecondPassThreshold.
var SecondPass = Options{MaxWidth: 600, MaxHeight: 600, Quality: 0.5}

// LadderFor picks first-pass options from the original byte size.
// It reports false when size is at or below Threshold.
func LadderFor(size int64) (Options, bool) {
	switch {
	case size > 8*mib:
		return Options{MaxWidth: 800, MaxHeight: 800, Quality: 0.6}, true
	case size > 5*mib:
		return Options{MaxWidth: 1000, MaxHeight: 1000, Quality: 0.7}, true
	case size > Threshold:
		return Options{MaxWidth: 1200, MaxHeight: 1200, Quality: 0.8}, true
	default:
		return Options{}, false
	}
}

// Result describes the outcome of Shrink.
type Result struct {
	Data []byte
	// Compressed is false when the original bytes were kept.
	Compressed bool
	// Passes counts encoder passes whose output was kept.
	Passes int
	Width  int
	Height int
}

// Shrink runs the escalation ladder over data. Output is never larger than the
// input: a pass that does not reduce size is discarded. Inputs at or below
// Threshold are returned untouched. Decode and encode failures are returned
// wrapped in ErrDecode / ErrEncode so callers can fall back to the original.
func Shrink(data []byte) (Result, error) {
	size := int64(len(data))
	opt, ok := LadderFor(size)
	if !ok {
		return Result{Data: data}, nil
	}

	img, _, err := Decode(data)
	if err != nil {
		return Result{}, err
	}

	out, err := Compress(img, opt)
	if err != nil {
		return Result{}, err
	}
	res := Result{Data: data}
	if len(out) < len(data) {
		res = Result{Data: out, Compressed: true, Passes: 1}
		res.Width, res.Height = FitWithin(img.Bounds().Dx(), img.Bounds().Dy(), opt.MaxWidth, opt.MaxHeight)
	}

	if int64(len(res.Data)) > SecondPassThreshold {
		out, err := Compress(img, SecondPass)
		if err != nil {
			return Result{}, err
		}
		if len(out) < len(res.Data) {
			res = Result{Data: out, Compressed: true, Passes: res.Passes + 1}
			res.Width, res.Height = FitWithin(img.Bounds().Dx(), img.Bounds().Dy(), SecondPass.MaxWidth, SecondPass.MaxHeight)
		}
	}
	return res, nil
}
