package objectstore

import "testing"

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.BucketAudit != "audit" || cfg.Prefix != "events" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	base := Config{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "s", Region: "us-east-1", BucketAudit: "audit"}
	if err := base.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
	withScheme := base
	withScheme.Endpoint = "http://minio:9000"
	if err := withScheme.Validate(); err == nil {
		t.Fatalf("expected error for endpoint with scheme")
	}
	noBucket := base
	noBucket.BucketAudit = " "
	if err := noBucket.Validate(); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}

func TestNewMinIOClient(t *testing.T) {
	client, err := NewMinIOClient(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Region: "us-east-1", BucketAudit: "audit"})
	if err != nil {
		t.Fatalf("NewMinIOClient() err=%v", err)
	}
	if client.EndpointURL().Host != "localhost:9000" {
		t.Fatalf("endpoint=%v", client.EndpointURL())
	}
}
