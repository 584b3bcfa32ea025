// MIT License
//
// Copyright (c) 2025 Mike Lane
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package credentials

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Keys expected in the Kubernetes Secret holding the App identity.
const (
	SecretKeyAppID        = "app-id"
	SecretKeyPrivateKey   = "private-key"
	SecretKeyClientID     = "client-id"
	SecretKeyClientSecret = "client-secret"
)

// FromSecret loads credentials from a Kubernetes Secret.
// A missing Secret or missing keys are reported as a ConfigurationError.
func FromSecret(ctx context.Context, reader client.Reader, key types.NamespacedName) (*AppCredentials, error) {
	logger := log.FromContext(ctx).WithValues("secret", key.String())

	secret := &corev1.Secret{}
	if err := reader.Get(ctx, key, secret); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("secret %s not found", key)}
		}
		return nil, fmt.Errorf("failed to get credentials secret: %w", err)
	}

	value := func(k string) string {
		if v, ok := secret.Data[k]; ok {
			return string(v)
		}
		// StringData is only populated on objects that have not round-tripped
		// through the API server (fake clients, tests).
		return secret.StringData[k]
	}

	creds, err := New(
		value(SecretKeyAppID),
		value(SecretKeyPrivateKey),
		value(SecretKeyClientID),
		value(SecretKeyClientSecret),
	)
	if err != nil {
		return nil, err
	}

	logger.V(1).Info("Loaded GitHub App credentials from secret", "appID", creds.AppID)
	return creds, nil
}
