package testutil

// TestSigningKey is the HMAC key for stores created in tests only.
// At least 32 bytes of key material.
const TestSigningKey = "test-signing-key-1234567890123456"
