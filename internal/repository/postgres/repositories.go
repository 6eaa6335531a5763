package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users          *UserRepository
	PasswordResets *PasswordResetRepository
	Profiles       *ProfileRepository
	Payments       *PaymentRepository
	LoginAudit     *LoginAuditRepository
}

// NewRepositories wires all repositories backed by the provided executor.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Users:          NewUserRepository(exec),
		PasswordResets: NewPasswordResetRepository(exec),
		Profiles:       NewProfileRepository(exec),
		Payments:       NewPaymentRepository(exec),
		LoginAudit:     NewLoginAuditRepository(exec),
	}
}
