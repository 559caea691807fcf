package domain

// ZkProof is the opaque output of the external proving service. It is only
// valid for the exact (identity token, salt, ephemeral public key, max epoch)
// tuple it was requested with; none of those inputs may be substituted after
// proof generation.
type ZkProof struct {
	ProofBytes        []byte
	PublicInputDigest []byte
}

// Empty reports whether the proof carries no material.
func (p ZkProof) Empty() bool {
	return len(p.ProofBytes) == 0 && len(p.PublicInputDigest) == 0
}
