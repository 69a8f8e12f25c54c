package message

// AddAgents introduces additional agents into an in-flight transaction.
type AddAgents struct {
	Agents []Agent `json:"agents" validate:"required,min=1,dive"`
}

func (a AddAgents) MessageType() TypeURI { return TypeAddAgents }

func (a AddAgents) Validate() error {
	if err := validateStruct(a); err != nil {
		return err
	}
	return validateAgentsNonEmpty(a.Agents)
}

// ReplaceAgent swaps one agent for another, preserving the "for" party.
type ReplaceAgent struct {
	Original string `json:"original" validate:"required"`
	Replacement Agent `json:"replacement" validate:"required"`
}

func (r ReplaceAgent) MessageType() TypeURI { return TypeReplaceAgent }

func (r ReplaceAgent) Validate() error {
	return validateStruct(r)
}

// RemoveAgent drops an agent from an in-flight transaction.
type RemoveAgent struct {
	Agent string `json:"agent" validate:"required"`
}

func (r RemoveAgent) MessageType() TypeURI { return TypeRemoveAgent }

func (r RemoveAgent) Validate() error {
	return validateStruct(r)
}
