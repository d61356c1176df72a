package services

import "golang.org/x/crypto/bcrypt"

type IHasher interface {
	GenerateFromPassword(password []byte, cost int) ([]byte, error)
	CompareHashAndPassword(storedHash []byte, password []byte) error
	DefaultCost() int
}

type BcryptHasher struct {
}

func (b *BcryptHasher) DefaultCost() int {
	return bcrypt.DefaultCost
}

func (b *BcryptHasher) GenerateFromPassword(password []byte, cost int) ([]byte, error) {
	return bcrypt.GenerateFromPassword(password, cost)
}

func (b *BcryptHasher) CompareHashAndPassword(storedHash []byte, password []byte) error {
	return bcrypt.CompareHashAndPassword(storedHash, password)
}
