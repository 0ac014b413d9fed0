package passwordpolicy

// Validator checks passwords against the policy currently held.
type Validator interface {
	Validate(password string) error
	CurrentPolicy() Policy
}

type validator struct {
	holder *Holder
}

func NewValidator(holder *Holder) Validator {
	return &validator{holder: holder}
}

func (v *validator) Validate(password string) error {
	return v.holder.Get().Check(password)
}

func (v *validator) CurrentPolicy() Policy {
	return v.holder.Get()
}
