package decoder

// Settings are LibRaw output parameters applied on Open. Nil fields are
// omitted and leave the decoder default in place. The host never
// interprets them; they are serialized as JSON for the guest.
type Settings struct {
	Greybox    *[4]uint32  `json:"greybox,omitempty" cbor:"greybox,omitempty"`
	Cropbox    *[4]uint32  `json:"cropbox,omitempty" cbor:"cropbox,omitempty"`
	Aber       *[4]float64 `json:"aber,omitempty" cbor:"aber,omitempty"`
	Gamm       *[6]float64 `json:"gamm,omitempty" cbor:"gamm,omitempty"`
	UserMul    *[4]float32 `json:"userMul,omitempty" cbor:"userMul,omitempty"`
	UserCblack *[4]int32   `json:"userCblack,omitempty" cbor:"userCblack,omitempty"`

	Bright           *float32 `json:"bright,omitempty" cbor:"bright,omitempty"`
	Threshold        *float32 `json:"threshold,omitempty" cbor:"threshold,omitempty"`
	AutoBrightThr    *float32 `json:"autoBrightThr,omitempty" cbor:"autoBrightThr,omitempty"`
	AdjustMaximumThr *float32 `json:"adjustMaximumThr,omitempty" cbor:"adjustMaximumThr,omitempty"`
	ExpShift         *float32 `json:"expShift,omitempty" cbor:"expShift,omitempty"`
	ExpPreser        *float32 `json:"expPreser,omitempty" cbor:"expPreser,omitempty"`

	HalfSize        *int `json:"halfSize,omitempty" cbor:"halfSize,omitempty"`
	FourColorRgb    *int `json:"fourColorRgb,omitempty" cbor:"fourColorRgb,omitempty"`
	Highlight       *int `json:"highlight,omitempty" cbor:"highlight,omitempty"`
	UseAutoWb       *int `json:"useAutoWb,omitempty" cbor:"useAutoWb,omitempty"`
	UseCameraWb     *int `json:"useCameraWb,omitempty" cbor:"useCameraWb,omitempty"`
	UseCameraMatrix *int `json:"useCameraMatrix,omitempty" cbor:"useCameraMatrix,omitempty"`
	OutputColor     *int `json:"outputColor,omitempty" cbor:"outputColor,omitempty"`
	OutputBps       *int `json:"outputBps,omitempty" cbor:"outputBps,omitempty"`
	OutputTiff      *int `json:"outputTiff,omitempty" cbor:"outputTiff,omitempty"`
	OutputFlags     *int `json:"outputFlags,omitempty" cbor:"outputFlags,omitempty"`
	UserFlip        *int `json:"userFlip,omitempty" cbor:"userFlip,omitempty"`
	UserQual        *int `json:"userQual,omitempty" cbor:"userQual,omitempty"`
	UserBlack       *int `json:"userBlack,omitempty" cbor:"userBlack,omitempty"`
	UserSat         *int `json:"userSat,omitempty" cbor:"userSat,omitempty"`
	MedPasses       *int `json:"medPasses,omitempty" cbor:"medPasses,omitempty"`
	NoAutoBright    *int `json:"noAutoBright,omitempty" cbor:"noAutoBright,omitempty"`
	UseFujiRotate   *int `json:"useFujiRotate,omitempty" cbor:"useFujiRotate,omitempty"`
	GreenMatching   *int `json:"greenMatching,omitempty" cbor:"greenMatching,omitempty"`
	DcbIterations   *int `json:"dcbIterations,omitempty" cbor:"dcbIterations,omitempty"`
	DcbEnhanceFl    *int `json:"dcbEnhanceFl,omitempty" cbor:"dcbEnhanceFl,omitempty"`
	FbddNoiserd     *int `json:"fbddNoiserd,omitempty" cbor:"fbddNoiserd,omitempty"`
	ExpCorrec       *int `json:"expCorrec,omitempty" cbor:"expCorrec,omitempty"`
	NoAutoScale     *int `json:"noAutoScale,omitempty" cbor:"noAutoScale,omitempty"`
	NoInterpolation *int `json:"noInterpolation,omitempty" cbor:"noInterpolation,omitempty"`

	OutputProfile *string `json:"outputProfile,omitempty" cbor:"outputProfile,omitempty"`
	CameraProfile *string `json:"cameraProfile,omitempty" cbor:"cameraProfile,omitempty"`
	BadPixels     *string `json:"badPixels,omitempty" cbor:"badPixels,omitempty"`
	DarkFrame     *string `json:"darkFrame,omitempty" cbor:"darkFrame,omitempty"`
}

// Ptr returns a pointer to v, for filling Settings literals.
func Ptr[T any](v T) *T {
	return &v
}

// MarshalGuest encodes s as the JSON object the guest reads.
// A nil Settings encodes to nil.
func (s *Settings) MarshalGuest() ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return guestJSON.Marshal(s)
}
